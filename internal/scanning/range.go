package scanning

import (
	"context"
	"fmt"

	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/targets"
	"github.com/NubleX/LEGION2/internal/tools"
)

// SubmitRange queues a discovery sweep over a range. When it completes, one
// job per live host is queued with the requested scan type; those jobs are
// announced through scan-result events. The returned slice holds only the
// discovery job id.
func (s *Scheduler) SubmitRange(ctx context.Context, rr RangeRequest) ([]string, error) {
	if err := s.validate.Struct(rr); err != nil {
		return nil, errors.WrapScanError(errors.CodeValidation, "invalid range request", err)
	}

	prefix, err := targets.ValidateCIDR(rr.CIDR)
	if err != nil {
		return nil, err
	}
	excludes, err := targets.NewExcludeSet(rr.Excludes)
	if err != nil {
		return nil, err
	}
	addrs, err := targets.GenerateTargets([]string{prefix.String()}, rr.Excludes)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, errors.ErrInvalidTarget(rr.CIDR, fmt.Errorf("every address in the range is excluded"))
	}
	first := addrs[0].String()
	hosts := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		hosts[a.String()] = true
	}

	scanTool, err := s.deps.Tools.Get(rr.ScanType)
	if err != nil {
		return nil, err
	}
	if err := scanTool.Validate(first, rr.Options); err != nil {
		return nil, err
	}

	discovery, err := s.deps.Tools.Get(tools.ScanDiscovery)
	if err != nil {
		return nil, err
	}
	sweep := Request{
		Target:     prefix.String(),
		ScanType:   tools.ScanDiscovery,
		Options:    tools.Options{Timing: rr.Options.Timing, Excludes: excludes.Strings()},
		Priority:   rr.Priority,
		MaxRetries: rr.MaxRetries,
	}
	if err := discovery.Validate(sweep.Target, sweep.Options); err != nil {
		return nil, err
	}

	plan := &rangePlan{
		hosts: hosts,
		request: Request{
			ScanType:   rr.ScanType,
			Options:    rr.Options,
			Priority:   rr.Priority,
			MaxRetries: rr.MaxRetries,
		},
		spawned: make(map[string]bool),
	}
	id, err := s.enqueue(ctx, sweep, discovery, plan)
	if err != nil {
		return nil, err
	}
	s.logger.WithJob(id, tools.ScanDiscovery).Info("Range scan queued",
		"cidr", prefix.String(), "hosts", len(hosts), "scan_type", rr.ScanType)
	return []string{id}, nil
}
