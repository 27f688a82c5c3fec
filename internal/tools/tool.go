// Package tools adapts external scanners to the engine. Each tool knows how
// to build a command line for a target, how to read progress from its output
// lines, and how to normalize its final output into a results.Set.
package tools

import (
	"fmt"
	"net/netip"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/results"
	"github.com/NubleX/LEGION2/internal/targets"
)

// Scan types understood by the default registry.
const (
	ScanNmap              = "nmap"
	ScanNmapQuick         = "nmap-quick"
	ScanNmapComprehensive = "nmap-comprehensive"
	ScanNmapStealth       = "nmap-stealth"
	ScanNmapCustom        = "nmap-custom"
	ScanDiscovery         = "discovery"
	ScanMasscan           = "masscan"
	ScanNikto             = "nikto"
	ScanDirb              = "dirb"
)

// Options tunes a tool invocation. Tools ignore options that do not apply to them.
type Options struct {
	PortRange        string   `json:"port_range,omitempty" yaml:"port_range,omitempty"`
	Timing           *int     `json:"timing,omitempty" yaml:"timing,omitempty" validate:"omitempty,min=0,max=5"`
	Stealth          bool     `json:"stealth,omitempty" yaml:"stealth,omitempty"`
	Fragment         bool     `json:"fragment,omitempty" yaml:"fragment,omitempty"`
	ServiceDetection bool     `json:"service_detection,omitempty" yaml:"service_detection,omitempty"`
	OSDetection      bool     `json:"os_detection,omitempty" yaml:"os_detection,omitempty"`
	Scripts          []string `json:"scripts,omitempty" yaml:"scripts,omitempty"`
	CustomArgs       string   `json:"custom_args,omitempty" yaml:"custom_args,omitempty" validate:"max=1024"`
	Rate             int      `json:"rate,omitempty" yaml:"rate,omitempty" validate:"omitempty,min=1,max=10000000"`
	Wordlist         string   `json:"wordlist,omitempty" yaml:"wordlist,omitempty"`
	Excludes         []string `json:"excludes,omitempty" yaml:"excludes,omitempty"`
	// Timeout in seconds overrides the per-scan-type default.
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"omitempty,min=1,max=86400"`
}

// Invocation is a fully built command line.
type Invocation struct {
	Path string
	Args []string
}

func (i Invocation) String() string {
	return strings.TrimSpace(i.Path + " " + strings.Join(i.Args, " "))
}

// Tool is one external scanner variant.
type Tool interface {
	// Name is the scan type this tool serves.
	Name() string
	// Validate rejects targets or options the tool cannot run with.
	Validate(target string, opts Options) error
	// BuildInvocation returns the command line for target.
	BuildInvocation(target string, opts Options) (Invocation, error)
	// ParseOutput normalizes the tool's complete stdout.
	ParseOutput(target string, stdout []byte) (results.Set, error)
	// EstimateProgress extracts a completion percentage from one output line.
	EstimateProgress(line string) (float64, bool)
	// RecoverableExit reports whether a non-zero exit status is worth retrying.
	RecoverableExit(code int) bool
}

// ExitAccepter is implemented by tools whose successful runs may end with a
// non-zero exit status.
type ExitAccepter interface {
	AcceptsExit(code int) bool
}

// Paths overrides the binaries used by the default tools.
type Paths struct {
	Nmap    string `yaml:"nmap" json:"nmap" mapstructure:"nmap"`
	Masscan string `yaml:"masscan" json:"masscan" mapstructure:"masscan"`
	Nikto   string `yaml:"nikto" json:"nikto" mapstructure:"nikto"`
	Dirb    string `yaml:"dirb" json:"dirb" mapstructure:"dirb"`
}

// RegistryConfig configures the default tool set.
type RegistryConfig struct {
	Paths Paths
	// Unprivileged swaps raw-socket techniques for ones that work without root.
	Unprivileged bool
	// MasscanRate is the packet rate used when a request sets none.
	MasscanRate int
	// DirbWordlist is the wordlist used when a request sets none.
	DirbWordlist string
}

// Registry maps scan types to tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry holding every built-in tool.
func NewRegistry(cfg RegistryConfig) *Registry {
	nmapPath := orDefault(cfg.Paths.Nmap, "nmap")
	r := &Registry{tools: make(map[string]Tool)}
	for _, profile := range []string{ScanNmap, ScanNmapQuick, ScanNmapComprehensive, ScanNmapStealth, ScanNmapCustom} {
		r.Register(newNmapTool(profile, nmapPath, cfg.Unprivileged))
	}
	r.Register(newDiscoveryTool(nmapPath))
	r.Register(newMasscanTool(orDefault(cfg.Paths.Masscan, "masscan"), cfg.MasscanRate))
	r.Register(newNiktoTool(orDefault(cfg.Paths.Nikto, "nikto")))
	r.Register(newDirbTool(orDefault(cfg.Paths.Dirb, "dirb"), cfg.DirbWordlist))
	return r
}

// Register adds or replaces the tool for t.Name().
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the tool for scanType.
func (r *Registry) Get(scanType string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[scanType]
	if !ok {
		return nil, errors.ErrToolNotFound(scanType)
	}
	return t, nil
}

// Types lists the registered scan types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

var (
	xmlPercentRe  = regexp.MustCompile(`percent="([0-9]+(?:\.[0-9]+)?)"`)
	donePercentRe = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%\s*done`)
)

// percentFrom returns the first progress percentage found in line.
func percentFrom(line string) (float64, bool) {
	for _, re := range []*regexp.Regexp{xmlPercentRe, donePercentRe} {
		if m := re.FindStringSubmatch(line); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			return clampPercent(v), true
		}
	}
	return 0, false
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// requireAddressTarget rejects hostnames for tools that only accept addresses or ranges.
func requireAddressTarget(tool, target string) error {
	kind, err := targets.ValidateTarget(target)
	if err != nil {
		return err
	}
	if kind == targets.KindHostname {
		return errors.ErrInvalidTarget(target, fmt.Errorf("%s requires an IP address or CIDR range", tool))
	}
	return nil
}

// hostIP returns target as an address when it is one.
func hostIP(target string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(target))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}

func parseError(tool string, err error) error {
	return errors.WrapScanError(errors.CodeParseError, fmt.Sprintf("Failed to parse %s output", tool), err)
}
