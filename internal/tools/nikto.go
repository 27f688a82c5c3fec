package tools

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/results"
	"github.com/NubleX/LEGION2/internal/targets"
)

const niktoCSVFields = 7

var niktoMediumMarkers = []string{"vulnerab", "injection", "xss", "cross site", "remote", "traversal", "execute"}

// niktoTool runs a nikto web scan with CSV output on stdout. Every reported
// item becomes a finding on the scanned port.
type niktoTool struct {
	path string
}

func newNiktoTool(path string) *niktoTool {
	return &niktoTool{path: path}
}

func (t *niktoTool) Name() string { return ScanNikto }

func (t *niktoTool) Validate(target string, opts Options) error {
	kind, err := targets.ValidateTarget(target)
	if err != nil {
		return err
	}
	if kind == targets.KindCIDR {
		return errors.ErrInvalidTarget(target, fmt.Errorf("nikto scans a single host"))
	}
	if opts.PortRange != "" {
		if _, err := targets.ValidatePortRange(opts.PortRange); err != nil {
			return err
		}
	}
	return nil
}

func (t *niktoTool) BuildInvocation(target string, opts Options) (Invocation, error) {
	if err := t.Validate(target, opts); err != nil {
		return Invocation{}, err
	}
	args := []string{"-h", target, "-Format", "csv", "-output", "-", "-ask", "no", "-nointeractive"}
	if opts.PortRange != "" {
		args = append(args, "-p", opts.PortRange)
	}
	return Invocation{Path: t.path, Args: args}, nil
}

// ParseOutput reads rows of host, ip, port, reference, method, uri, message.
func (t *niktoTool) ParseOutput(target string, stdout []byte) (results.Set, error) {
	var set results.Set
	seenHost := make(map[string]bool)
	seenPort := make(map[string]bool)

	r := csv.NewReader(bytes.NewReader(stdout))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return results.Set{}, parseError("nikto", err)
		}
		if len(rec) < niktoCSVFields || strings.HasPrefix(rec[0], "Nikto") {
			continue
		}

		ip, ok := hostIP(rec[1])
		if !ok {
			if ip, ok = hostIP(target); !ok {
				continue
			}
		}
		port, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil {
			continue
		}

		if !seenHost[ip] {
			seenHost[ip] = true
			set.Hosts = append(set.Hosts, results.Host{IP: ip, Hostname: hostnameOf(rec[0], ip), Status: results.StatusUp})
		}
		if key := fmt.Sprintf("%s/%d", ip, port); !seenPort[key] {
			seenPort[key] = true
			set.Ports = append(set.Ports, results.Port{HostIP: ip, Number: port, Protocol: "tcp", State: "open", Service: "http"})
		}

		ref := strings.TrimSpace(rec[3])
		uri := strings.TrimSpace(rec[5])
		message := StripANSI(strings.TrimSpace(rec[6]))
		if message == "" {
			continue
		}

		name := "nikto:" + uri
		if ref != "" && ref != "0" {
			name = "nikto:" + ref + ":" + uri
		}
		v := results.Vulnerability{
			HostIP:      ip,
			PortNumber:  port,
			Protocol:    "tcp",
			Name:        truncate(name, 255),
			Severity:    niktoSeverity(message),
			Description: truncate(message, maxVulnDescription),
			CVEID:       cveRe.FindString(message),
		}
		if ref != "" {
			v.References = []string{ref}
		}
		set.Vulnerabilities = append(set.Vulnerabilities, v)
	}
	return set, nil
}

func niktoSeverity(message string) string {
	lower := strings.ToLower(message)
	for _, marker := range niktoMediumMarkers {
		if strings.Contains(lower, marker) {
			return results.SeverityMedium
		}
	}
	return results.SeverityLow
}

func hostnameOf(host, ip string) string {
	host = strings.TrimSpace(host)
	if host == ip || targets.ValidateHostname(host) != nil {
		return ""
	}
	return host
}

func (t *niktoTool) EstimateProgress(string) (float64, bool) {
	return 0, false
}

func (t *niktoTool) RecoverableExit(code int) bool {
	return code != 0
}

// AcceptsExit: nikto exits 1 when it reported items.
func (t *niktoTool) AcceptsExit(code int) bool {
	return code == 0 || code == 1
}
