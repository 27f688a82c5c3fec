package tools

import (
	"fmt"
	"strings"

	"github.com/Ullaakut/nmap/v3"

	"github.com/NubleX/LEGION2/internal/results"
	"github.com/NubleX/LEGION2/internal/targets"
)

// discoveryTool finds live hosts with an nmap ping sweep. The probe set is
// fixed; only timing and excludes are taken from options.
type discoveryTool struct {
	path string
}

func newDiscoveryTool(path string) *discoveryTool {
	return &discoveryTool{path: path}
}

func (t *discoveryTool) Name() string { return ScanDiscovery }

func (t *discoveryTool) Validate(target string, opts Options) error {
	if err := requireAddressTarget("discovery", target); err != nil {
		return err
	}
	_, err := targets.NewExcludeSet(opts.Excludes)
	return err
}

func (t *discoveryTool) BuildInvocation(target string, opts Options) (Invocation, error) {
	if err := t.Validate(target, opts); err != nil {
		return Invocation{}, err
	}

	timing := nmap.TimingAggressive
	if opts.Timing != nil {
		timing = nmap.Timing(*opts.Timing)
	}

	args := []string{
		"-oX", "-", "--stats-every", statsInterval,
		"-sn", "-PE", "-PS22,80,443", "-PA80",
		fmt.Sprintf("-T%d", timing),
	}
	if len(opts.Excludes) > 0 {
		args = append(args, "--exclude", strings.Join(opts.Excludes, ","))
	}
	args = append(args, target)
	return Invocation{Path: t.path, Args: args}, nil
}

func (t *discoveryTool) ParseOutput(_ string, stdout []byte) (results.Set, error) {
	run, err := parseNmapXML(stdout)
	if err != nil {
		return results.Set{}, parseError("discovery", err)
	}
	return convertNmapRun(run, false), nil
}

func (t *discoveryTool) EstimateProgress(line string) (float64, bool) {
	return percentFrom(line)
}

func (t *discoveryTool) RecoverableExit(code int) bool {
	return code != 0
}
