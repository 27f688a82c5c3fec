package tools

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Ullaakut/nmap/v3"

	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/results"
	"github.com/NubleX/LEGION2/internal/targets"
)

const (
	statsInterval      = "2s"
	vulnersScriptID    = "vulners"
	vulnerableMarker   = "VULNERABLE"
	maxVulnDescription = 1024
)

// reservedNmapArgs may not appear in custom arguments: they redirect output
// or read input the engine does not control.
var reservedNmapArgs = []string{"-o", "-iL", "-iR", "--resume", "--stats-every", "--datadir", "--servicedb", "--versiondb"}

var (
	cveRe        = regexp.MustCompile(`CVE-\d{4}-\d{4,}`)
	urlRe        = regexp.MustCompile(`https?://[^\s]+`)
	vulnersRowRe = regexp.MustCompile(`^\s*(\S+)\s+([0-9]+(?:\.[0-9]+)?)\s+(https?://\S+)(\s+\*EXPLOIT\*)?`)
)

type nmapTool struct {
	profile      string
	path         string
	unprivileged bool
}

func newNmapTool(profile, path string, unprivileged bool) *nmapTool {
	return &nmapTool{profile: profile, path: path, unprivileged: unprivileged}
}

func (t *nmapTool) Name() string { return t.profile }

func (t *nmapTool) Validate(target string, opts Options) error {
	if _, err := targets.ValidateTarget(target); err != nil {
		return err
	}
	if opts.PortRange != "" {
		if _, err := targets.ValidatePortRange(opts.PortRange); err != nil {
			return err
		}
	}
	if t.profile == ScanNmapCustom {
		if strings.TrimSpace(opts.CustomArgs) == "" {
			return errors.NewScanError(errors.CodeValidation, "custom scan requires custom_args")
		}
		for _, arg := range strings.Fields(opts.CustomArgs) {
			for _, reserved := range reservedNmapArgs {
				if strings.HasPrefix(arg, reserved) {
					return errors.NewScanError(errors.CodeValidation,
						fmt.Sprintf("argument %q is not allowed in custom_args", arg))
				}
			}
		}
	}
	for _, ex := range opts.Excludes {
		if _, err := targets.ValidateTarget(ex); err != nil {
			return err
		}
	}
	return nil
}

func (t *nmapTool) synFlag() string {
	if t.unprivileged {
		return "-sT"
	}
	return "-sS"
}

// BuildInvocation assembles arguments for the profile, then applies options.
func (t *nmapTool) BuildInvocation(target string, opts Options) (Invocation, error) {
	if err := t.Validate(target, opts); err != nil {
		return Invocation{}, err
	}

	args := []string{"-oX", "-", "--stats-every", statsInterval}
	timing := nmap.TimingAggressive

	switch t.profile {
	case ScanNmap:
		args = append(args, "-sV")
	case ScanNmapQuick:
		args = append(args, t.synFlag())
		if opts.PortRange == "" {
			args = append(args, "--top-ports", "1000")
		}
	case ScanNmapComprehensive:
		args = append(args, t.synFlag(), "-sV", "-A")
		if !t.unprivileged {
			args = append(args, "-O")
		}
		if opts.PortRange == "" {
			args = append(args, "-p", "1-65535")
		}
	case ScanNmapStealth:
		args = append(args, t.synFlag(), "-f")
		timing = nmap.TimingPolite
	case ScanNmapCustom:
		args = append(args, strings.Fields(opts.CustomArgs)...)
	}

	if opts.PortRange != "" {
		args = append(args, "-p", opts.PortRange)
	}
	if opts.Stealth && t.profile != ScanNmapStealth {
		timing = nmap.TimingPolite
	}
	if opts.Timing != nil {
		timing = nmap.Timing(*opts.Timing)
	}
	if t.profile != ScanNmapCustom || opts.Timing != nil {
		args = append(args, fmt.Sprintf("-T%d", timing))
	}
	if opts.Fragment && t.profile != ScanNmapStealth && !t.unprivileged {
		args = append(args, "-f")
	}
	if opts.ServiceDetection && t.profile != ScanNmap && t.profile != ScanNmapComprehensive {
		args = append(args, "-sV")
	}
	if opts.OSDetection && t.profile != ScanNmapComprehensive && !t.unprivileged {
		args = append(args, "-O")
	}
	if len(opts.Scripts) > 0 {
		args = append(args, "--script", strings.Join(opts.Scripts, ","))
	}
	if len(opts.Excludes) > 0 {
		args = append(args, "--exclude", strings.Join(opts.Excludes, ","))
	}
	args = append(args, target)

	return Invocation{Path: t.path, Args: args}, nil
}

func (t *nmapTool) ParseOutput(_ string, stdout []byte) (results.Set, error) {
	run, err := parseNmapXML(stdout)
	if err != nil {
		return results.Set{}, parseError("nmap", err)
	}
	return convertNmapRun(run, true), nil
}

func (t *nmapTool) EstimateProgress(line string) (float64, bool) {
	return percentFrom(line)
}

// RecoverableExit treats every failure as transient; nmap does not separate
// usage errors from network failures in its exit status.
func (t *nmapTool) RecoverableExit(code int) bool {
	return code != 0
}

// parseNmapXML parses nmap XML. --stats-every interleaves progress elements
// with the report, which the parser skips.
func parseNmapXML(stdout []byte) (*nmap.Run, error) {
	stdout = bytes.TrimSpace(stdout)
	if len(stdout) == 0 {
		return nil, fmt.Errorf("empty output")
	}
	var run nmap.Run
	if err := nmap.Parse(stdout, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// convertNmapRun normalizes a parsed nmap report. With withPorts false only
// host records are produced.
func convertNmapRun(run *nmap.Run, withPorts bool) results.Set {
	var set results.Set
	for i := range run.Hosts {
		h := &run.Hosts[i]
		host, ok := convertNmapHost(h)
		if !ok {
			continue
		}
		set.Hosts = append(set.Hosts, host)
		if !withPorts {
			continue
		}

		for j := range h.Ports {
			p := &h.Ports[j]
			port := results.Port{
				HostIP:     host.IP,
				Number:     int(p.ID),
				Protocol:   strings.ToLower(p.Protocol),
				State:      p.State.State,
				Service:    p.Service.Name,
				Version:    strings.TrimSpace(p.Service.Product + " " + p.Service.Version),
				Confidence: p.Service.Confidence,
			}
			for _, s := range p.Scripts {
				if s.ID == "banner" {
					port.Banner = StripANSI(strings.TrimSpace(s.Output))
				}
				set.Scripts = append(set.Scripts, results.Script{
					HostIP: host.IP, PortNumber: port.Number, Protocol: port.Protocol,
					Name: s.ID, Output: s.Output,
				})
				set.Vulnerabilities = append(set.Vulnerabilities,
					scriptVulnerabilities(host.IP, port.Number, port.Protocol, s.ID, s.Output)...)
			}
			set.Ports = append(set.Ports, port)
		}

		for _, s := range h.HostScripts {
			set.Scripts = append(set.Scripts, results.Script{HostIP: host.IP, Name: s.ID, Output: s.Output})
			set.Vulnerabilities = append(set.Vulnerabilities,
				scriptVulnerabilities(host.IP, 0, "", s.ID, s.Output)...)
		}
	}
	return set
}

func convertNmapHost(h *nmap.Host) (results.Host, bool) {
	var host results.Host
	for _, a := range h.Addresses {
		switch a.AddrType {
		case "ipv4", "ipv6":
			if host.IP == "" {
				host.IP = a.Addr
			}
		case "mac":
			host.MACAddress = strings.ToUpper(a.Addr)
			host.Vendor = a.Vendor
		}
	}
	if host.IP == "" {
		return host, false
	}

	for _, hn := range h.Hostnames {
		if hn.Name != "" {
			host.Hostname = hn.Name
			break
		}
	}

	switch h.Status.State {
	case results.StatusUp, results.StatusDown:
		host.Status = h.Status.State
	default:
		host.Status = results.StatusUnknown
	}

	best := -1
	for i, m := range h.OS.Matches {
		if best < 0 || m.Accuracy > h.OS.Matches[best].Accuracy {
			best = i
		}
	}
	if best >= 0 {
		m := h.OS.Matches[best]
		host.OSName = m.Name
		host.OSAccuracy = m.Accuracy
		if len(m.Classes) > 0 {
			host.OSFamily = strings.ToLower(m.Classes[0].Family)
		}
	}
	return host, true
}

// scriptVulnerabilities extracts findings from NSE script output: each row
// of the vulners script, or one finding for a script reporting VULNERABLE.
func scriptVulnerabilities(ip string, port int, protocol, scriptID, output string) []results.Vulnerability {
	if scriptID == vulnersScriptID {
		return vulnersFindings(ip, port, protocol, output)
	}
	if !strings.Contains(output, vulnerableMarker) || strings.Contains(output, "NOT VULNERABLE") {
		return nil
	}

	v := results.Vulnerability{
		HostIP:      ip,
		PortNumber:  port,
		Protocol:    protocol,
		Name:        scriptID,
		Severity:    results.SeverityHigh,
		Description: truncate(firstMeaningfulLine(output, scriptID), maxVulnDescription),
		CVEID:       cveRe.FindString(output),
		References:  urlRe.FindAllString(output, -1),
	}
	if score, ok := cvssFrom(output); ok {
		v.CVSSScore = &score
		v.Severity = results.SeverityFromCVSS(score)
	}
	return []results.Vulnerability{v}
}

func vulnersFindings(ip string, port int, protocol, output string) []results.Vulnerability {
	var out []results.Vulnerability
	for _, line := range strings.Split(output, "\n") {
		m := vulnersRowRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		score, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		v := results.Vulnerability{
			HostIP:      ip,
			PortNumber:  port,
			Protocol:    protocol,
			Name:        m[1],
			Severity:    results.SeverityFromCVSS(score),
			Description: fmt.Sprintf("%s reported by vulners (CVSS %.1f)", m[1], score),
			CVSSScore:   &score,
			References:  []string{m[3]},
			Exploitable: m[4] != "",
		}
		if cveRe.MatchString(m[1]) {
			v.CVEID = m[1]
		}
		out = append(out, v)
	}
	return out
}

var cvssRe = regexp.MustCompile(`(?i)cvss[^0-9]{0,20}([0-9]{1,2}\.[0-9])`)

func cvssFrom(output string) (float64, bool) {
	m := cvssRe.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil || score > 10 {
		return 0, false
	}
	return score, true
}

func firstMeaningfulLine(output, fallback string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, vulnerableMarker) || strings.HasPrefix(line, "State:") {
			continue
		}
		return line
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
