package tools

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/NubleX/LEGION2/internal/results"
	"github.com/NubleX/LEGION2/internal/targets"
)

const (
	defaultMasscanRate  = 1000
	defaultMasscanPorts = "1-65535"
	masscanConfigError  = 1
)

// masscanTool runs masscan with list output on stdout. Masscan does not
// resolve names, so targets must be addresses or ranges.
type masscanTool struct {
	path string
	rate int
}

func newMasscanTool(path string, rate int) *masscanTool {
	if rate <= 0 {
		rate = defaultMasscanRate
	}
	return &masscanTool{path: path, rate: rate}
}

func (t *masscanTool) Name() string { return ScanMasscan }

func (t *masscanTool) Validate(target string, opts Options) error {
	if err := requireAddressTarget("masscan", target); err != nil {
		return err
	}
	if opts.PortRange != "" {
		if _, err := targets.ValidatePortRange(opts.PortRange); err != nil {
			return err
		}
	}
	_, err := targets.NewExcludeSet(opts.Excludes)
	return err
}

func (t *masscanTool) BuildInvocation(target string, opts Options) (Invocation, error) {
	if err := t.Validate(target, opts); err != nil {
		return Invocation{}, err
	}

	ports := opts.PortRange
	if ports == "" {
		ports = defaultMasscanPorts
	}
	rate := t.rate
	if opts.Rate > 0 {
		rate = opts.Rate
	}

	args := []string{
		target,
		"-p", ports,
		"--rate", strconv.Itoa(rate),
		"--banners",
		"-oL", "-",
	}
	for _, ex := range opts.Excludes {
		args = append(args, "--exclude", ex)
	}
	return Invocation{Path: t.path, Args: args}, nil
}

// ParseOutput reads list format:
//
//	open tcp 22 10.0.0.5 1700000000
//	banner tcp 22 10.0.0.5 1700000000 ssh SSH-2.0-OpenSSH_8.9
func (t *masscanTool) ParseOutput(_ string, stdout []byte) (results.Set, error) {
	var set results.Set
	seenHost := make(map[string]bool)
	portIdx := make(map[string]int)

	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		number, err := strconv.Atoi(fields[2])
		if err != nil {
			return results.Set{}, parseError("masscan", fmt.Errorf("invalid port in %q", line))
		}
		ip, ok := hostIP(fields[3])
		if !ok {
			return results.Set{}, parseError("masscan", fmt.Errorf("invalid address in %q", line))
		}
		protocol := strings.ToLower(fields[1])
		key := fmt.Sprintf("%s/%d/%s", ip, number, protocol)

		if !seenHost[ip] {
			seenHost[ip] = true
			set.Hosts = append(set.Hosts, results.Host{IP: ip, Status: results.StatusUp})
		}

		switch fields[0] {
		case "open", "closed":
			if _, dup := portIdx[key]; !dup {
				portIdx[key] = len(set.Ports)
				set.Ports = append(set.Ports, results.Port{
					HostIP: ip, Number: number, Protocol: protocol, State: fields[0],
				})
			}
		case "banner":
			if len(fields) < 6 {
				continue
			}
			service := fields[5]
			banner := StripANSI(strings.Join(fields[6:], " "))
			i, ok := portIdx[key]
			if !ok {
				i = len(set.Ports)
				portIdx[key] = i
				set.Ports = append(set.Ports, results.Port{HostIP: ip, Number: number, Protocol: protocol, State: "open"})
			}
			p := &set.Ports[i]
			p.Banner = banner
			info := ParseServiceBanner(banner)
			p.Service = orDefault(info.Service, service)
			if info.Version != "" {
				p.Version = info.Version
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return results.Set{}, parseError("masscan", err)
	}
	return set, nil
}

func (t *masscanTool) EstimateProgress(line string) (float64, bool) {
	return percentFrom(line)
}

// RecoverableExit: status 1 is a configuration failure that will repeat.
func (t *masscanTool) RecoverableExit(code int) bool {
	return code != 0 && code != masscanConfigError
}
