// Package scanning runs scan jobs for LEGION.
//
// A Scheduler owns a fixed pool of workers that pull jobs from a priority
// queue. Each job runs one external tool through the runner package, turns
// its output into a results.Set with the tool's parser and merges that set
// into the inventory store.
//
// # Lifecycle
//
// Every job moves through queued, running and one terminal status:
// completed, failed or cancelled. A terminal status is reached exactly once
// and is announced by exactly one terminal event, published after every
// other event of the job.
//
//	sched := scanning.NewScheduler(scanning.DefaultConfig(), scanning.Dependencies{
//		Store:    store,
//		Tools:    tools.NewRegistry(tools.RegistryConfig{}),
//		Launcher: runner.New(),
//		Events:   bus,
//	})
//	sched.Start()
//	defer sched.Shutdown(ctx)
//
//	id, err := sched.Submit(ctx, scanning.Request{Target: "10.0.0.5", ScanType: tools.ScanNmapQuick})
//
// # Retries
//
// Attempts that time out, or exit with a status the tool marks recoverable,
// are queued again after an exponential backoff until MaxRetries is used up.
// Parse errors and launch failures are never retried.
//
// # Range scans
//
// SubmitRange expands a CIDR range, removes excluded addresses and queues a
// discovery sweep. Once the sweep is merged, one job per live host in the
// range is queued with the requested scan type and a ParentID pointing at
// the sweep.
package scanning
