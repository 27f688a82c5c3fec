package tools

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/results"
	"github.com/NubleX/LEGION2/internal/targets"
)

const (
	defaultDirbWordlist = "/usr/share/dirb/wordlists/common.txt"
	dirbScriptName      = "dirb"
)

var (
	dirbFoundRe = regexp.MustCompile(`^\+\s+(\S+)\s+\(CODE:(\d+)\|SIZE:(\d+)\)`)
	dirbDirRe   = regexp.MustCompile(`^==>\s+DIRECTORY:\s+(\S+)`)
)

// dirbTool brute-forces web content with dirb. Findings are recorded as one
// script result per scanned port.
type dirbTool struct {
	path     string
	wordlist string
}

func newDirbTool(path, wordlist string) *dirbTool {
	return &dirbTool{path: path, wordlist: orDefault(wordlist, defaultDirbWordlist)}
}

func (t *dirbTool) Name() string { return ScanDirb }

func (t *dirbTool) Validate(target string, opts Options) error {
	kind, err := targets.ValidateTarget(target)
	if err != nil {
		return err
	}
	if kind != targets.KindIP {
		return errors.ErrInvalidTarget(target, fmt.Errorf("dirb requires a single IP address"))
	}
	if _, err := t.port(opts); err != nil {
		return err
	}
	return nil
}

// port returns the single web port to scan; dirb takes one base URL.
func (t *dirbTool) port(opts Options) (int, error) {
	if opts.PortRange == "" {
		return 80, nil
	}
	ports, err := targets.ValidatePortRange(opts.PortRange)
	if err != nil {
		return 0, err
	}
	if len(ports) != 1 {
		return 0, errors.NewScanError(errors.CodeValidation, "dirb scans exactly one port")
	}
	return ports[0], nil
}

func (t *dirbTool) baseURL(target string, port int) string {
	scheme := "http"
	if port == 443 || port == 8443 {
		scheme = "https"
	}
	host := target
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s/", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d/", scheme, host, port)
}

func (t *dirbTool) BuildInvocation(target string, opts Options) (Invocation, error) {
	if err := t.Validate(target, opts); err != nil {
		return Invocation{}, err
	}
	port, _ := t.port(opts)
	wordlist := orDefault(opts.Wordlist, t.wordlist)
	return Invocation{
		Path: t.path,
		Args: []string{t.baseURL(target, port), wordlist, "-S", "-r", "-w"},
	}, nil
}

func (t *dirbTool) ParseOutput(target string, stdout []byte) (results.Set, error) {
	ip, ok := hostIP(target)
	if !ok {
		return results.Set{}, parseError("dirb", fmt.Errorf("target %q is not an address", target))
	}

	port := 80
	var findings []string
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(StripANSI(scanner.Text()))
		if strings.HasPrefix(line, "URL_BASE:") {
			if p := portFromURL(strings.TrimSpace(strings.TrimPrefix(line, "URL_BASE:"))); p > 0 {
				port = p
			}
			continue
		}
		if m := dirbFoundRe.FindStringSubmatch(line); m != nil {
			findings = append(findings, fmt.Sprintf("%s (status %s, %s bytes)", m[1], m[2], m[3]))
			continue
		}
		if m := dirbDirRe.FindStringSubmatch(line); m != nil {
			findings = append(findings, m[1]+" (directory)")
		}
	}
	if err := scanner.Err(); err != nil {
		return results.Set{}, parseError("dirb", err)
	}

	set := results.Set{
		Hosts: []results.Host{{IP: ip, Status: results.StatusUp}},
		Ports: []results.Port{{HostIP: ip, Number: port, Protocol: "tcp", State: "open", Service: "http"}},
	}
	if len(findings) > 0 {
		set.Scripts = []results.Script{{
			HostIP: ip, PortNumber: port, Protocol: "tcp",
			Name: dirbScriptName, Output: strings.Join(findings, "\n"),
		}}
	}
	return set, nil
}

var urlPortRe = regexp.MustCompile(`^(https?)://(?:\[[^\]]+\]|[^/:]+)(?::(\d+))?`)

func portFromURL(u string) int {
	m := urlPortRe.FindStringSubmatch(u)
	if m == nil {
		return 0
	}
	if m[2] != "" {
		p, _ := strconv.Atoi(m[2])
		return p
	}
	if m[1] == "https" {
		return 443
	}
	return 80
}

func (t *dirbTool) EstimateProgress(string) (float64, bool) {
	return 0, false
}

func (t *dirbTool) RecoverableExit(code int) bool {
	return code != 0
}
