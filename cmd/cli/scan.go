package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/NubleX/LEGION2/internal/config"
	"github.com/NubleX/LEGION2/internal/engine"
	"github.com/NubleX/LEGION2/internal/events"
	"github.com/NubleX/LEGION2/internal/scanning"
	"github.com/NubleX/LEGION2/internal/tools"
)

var (
	scanType         string
	scanPorts        string
	scanTiming       int
	scanStealth      bool
	scanFragment     bool
	scanServices     bool
	scanOS           bool
	scanScripts      []string
	scanCustomArgs   string
	scanRate         int
	scanWordlist     string
	scanExcludes     []string
	scanTimeout      int
	scanPriority     int
	scanMaxRetries   int
	scanQuiet        bool
	scanWaitDeadline time.Duration
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan TARGET",
	Short: "Run one scan against a target",
	Long: `Run a reconnaissance tool against one target and merge its findings into
the inventory. The command waits for the job to finish and prints progress
while it runs. Ctrl-C cancels the job.`,
	Example: `  legion scan 192.168.1.10
  legion scan 192.168.1.10 --type nmap --ports 22,80,443 --services
  legion scan 10.0.0.0/24 --type masscan --rate 5000
  legion scan https://intranet.example --type nikto`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

// scanRangeCmd represents the scan-range command
var scanRangeCmd = &cobra.Command{
	Use:   "scan-range CIDR",
	Short: "Discover live hosts in a range, then scan each one",
	Long: `Sweep a network range for live hosts, then run the selected scan type
against every host that answered. Excluded addresses are neither swept nor
scanned. The command waits for the sweep and every host scan to finish.`,
	Example: `  legion scan-range 192.168.1.0/24
  legion scan-range 10.0.0.0/24 --exclude 10.0.0.1,10.0.0.128/25 --type nmap --services`,
	Args: cobra.ExactArgs(1),
	RunE: runScanRange,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(scanRangeCmd)

	for _, cmd := range []*cobra.Command{scanCmd, scanRangeCmd} {
		f := cmd.Flags()
		f.StringVar(&scanType, "type", tools.ScanNmap, "scan type: nmap, masscan, nikto, dirb, discovery")
		f.StringVar(&scanPorts, "ports", "", "port specification, e.g. 22,80,443 or 1-1000")
		f.IntVar(&scanTiming, "timing", -1, "nmap timing template 0-5")
		f.BoolVar(&scanStealth, "stealth", false, "use a SYN scan")
		f.BoolVar(&scanFragment, "fragment", false, "fragment packets")
		f.BoolVar(&scanServices, "services", false, "detect service versions")
		f.BoolVar(&scanOS, "os", false, "detect the operating system")
		f.StringSliceVar(&scanScripts, "scripts", nil, "nmap scripts to run")
		f.StringVar(&scanCustomArgs, "args", "", "extra tool arguments")
		f.IntVar(&scanRate, "rate", 0, "masscan packet rate")
		f.StringVar(&scanWordlist, "wordlist", "", "dirb wordlist")
		f.IntVar(&scanTimeout, "timeout", 0, "job timeout in seconds (0 uses the configured default)")
		f.IntVar(&scanPriority, "priority", 0, "queue priority 0-10, higher runs first")
		f.IntVar(&scanMaxRetries, "retries", -1, "retries after a failed attempt (-1 uses the configured default)")
		f.BoolVarP(&scanQuiet, "quiet", "q", false, "do not print progress")
		f.DurationVar(&scanWaitDeadline, "wait", 0, "give up waiting after this long and cancel (0 waits forever)")
	}
	scanCmd.Flags().StringSliceVar(&scanExcludes, "exclude", nil, "addresses or CIDRs to skip")
	scanRangeCmd.Flags().StringSliceVar(&scanExcludes, "exclude", nil, "addresses or CIDRs to skip")
}

// scanOptions builds tool options from the command flags.
func scanOptions() tools.Options {
	opts := tools.Options{
		PortRange:        scanPorts,
		Stealth:          scanStealth,
		Fragment:         scanFragment,
		ServiceDetection: scanServices,
		OSDetection:      scanOS,
		Scripts:          scanScripts,
		CustomArgs:       scanCustomArgs,
		Rate:             scanRate,
		Wordlist:         scanWordlist,
		Excludes:         scanExcludes,
		Timeout:          scanTimeout,
	}
	if scanTiming >= 0 {
		t := scanTiming
		opts.Timing = &t
	}
	return opts
}

func scanRetries() *int {
	if scanMaxRetries < 0 {
		return nil
	}
	n := scanMaxRetries
	return &n
}

func runScan(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, _ *config.Config, eng *engine.Engine) error {
		sub := eng.Subscribe()
		defer sub.Close()

		id, err := eng.StartScan(ctx, scanning.Request{
			Target:     args[0],
			ScanType:   scanType,
			Options:    scanOptions(),
			Priority:   scanPriority,
			MaxRetries: scanRetries(),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Scan %s queued (%s against %s)\n", id, scanType, args[0])

		return waitAndReport(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), eng, sub, []string{id})
	})
}

func runScanRange(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, _ *config.Config, eng *engine.Engine) error {
		sub := eng.Subscribe()
		defer sub.Close()

		ids, err := eng.ScanNetworkRange(ctx, scanning.RangeRequest{
			CIDR:       args[0],
			Excludes:   scanExcludes,
			ScanType:   scanType,
			Options:    scanOptions(),
			Priority:   scanPriority,
			MaxRetries: scanRetries(),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Range scan of %s queued (discovery job %s)\n", args[0], ids[0])

		return waitAndReport(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), eng, sub, ids)
	})
}

// waitAndReport waits for the root jobs and every job they spawn, then
// prints a summary. Cancelling ctx cancels every unfinished job.
func waitAndReport(ctx context.Context, out, progress io.Writer, eng *engine.Engine, sub *events.Subscription, roots []string) error {
	if scanQuiet {
		progress = io.Discard
	}
	if scanWaitDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, scanWaitDeadline)
		defer cancel()
	}

	w := newJobWaiter(roots)
	if err := w.wait(ctx, eng, sub, progress); err != nil {
		cancelled := eng.CancelAllScans(context.Background())
		fmt.Fprintf(progress, "Cancelled %d unfinished jobs\n", cancelled)
		w.drain(eng, sub)
		_ = reportJobs(out, eng, w.jobIDs())
		return err
	}
	return reportJobs(out, eng, w.jobIDs())
}

// jobWaiter tracks a tree of jobs until all of them are terminal.
type jobWaiter struct {
	pending map[string]bool
	seen    map[string]bool
	order   []string
}

func newJobWaiter(roots []string) *jobWaiter {
	w := &jobWaiter{pending: make(map[string]bool), seen: make(map[string]bool)}
	for _, id := range roots {
		w.track(id)
	}
	return w
}

func (w *jobWaiter) track(id string) {
	if w.seen[id] {
		return
	}
	w.seen[id] = true
	w.pending[id] = true
	w.order = append(w.order, id)
}

func (w *jobWaiter) jobIDs() []string {
	return w.order
}

// observe applies one event and reports whether it concerned a tracked job.
func (w *jobWaiter) observe(ev events.Event) bool {
	if ev.Type == events.TypeScanResult {
		if j, ok := ev.Data.(scanning.Job); ok && w.seen[j.ParentID] {
			w.track(j.ID)
		}
	}
	if !w.seen[ev.JobID] {
		return false
	}
	if ev.Terminal {
		delete(w.pending, ev.JobID)
	}
	return true
}

// reconcile picks up state the subscription may have missed: children
// spawned by tracked jobs and jobs that finished while events were dropped.
func (w *jobWaiter) reconcile(ctx context.Context, eng *engine.Engine) {
	for _, j := range eng.ListScans(ctx) {
		if j.ParentID != "" && w.seen[j.ParentID] {
			w.track(j.ID)
		}
		if w.pending[j.ID] && j.Status.Terminal() {
			delete(w.pending, j.ID)
		}
	}
}

func (w *jobWaiter) wait(ctx context.Context, eng *engine.Engine, sub *events.Subscription, progress io.Writer) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		w.reconcile(ctx, eng)
		if len(w.pending) == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.C():
			if !ok {
				return fmt.Errorf("event stream closed")
			}
			if w.observe(ev) {
				printEvent(progress, ev)
			}
		case <-ticker.C:
		}
	}
}

// drain waits briefly for cancelled jobs to settle.
func (w *jobWaiter) drain(eng *engine.Engine, sub *events.Subscription) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = w.wait(ctx, eng, sub, io.Discard)
}

func printEvent(w io.Writer, ev events.Event) {
	switch data := ev.Data.(type) {
	case events.Progress:
		line := fmt.Sprintf("[%s] %5.1f%%", short(ev.JobID), data.Percent)
		if data.Phase != "" {
			line += " " + data.Phase
		}
		if data.Message != "" {
			line += " - " + data.Message
		}
		fmt.Fprintln(w, line)
	case events.ErrorInfo:
		fmt.Fprintf(w, "[%s] error: %s\n", short(ev.JobID), data.Message)
	case scanning.Job:
		if ev.Type == events.TypeScanResult {
			fmt.Fprintf(w, "[%s] queued %s against %s\n", short(data.ID), data.ScanType, data.Target)
		} else {
			fmt.Fprintf(w, "[%s] %s\n", short(data.ID), data.Status)
		}
	default:
		if ev.Type == events.TypeHostDiscovered {
			fmt.Fprintf(w, "[%s] host discovered\n", short(ev.JobID))
		}
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// reportJobs prints the final state of every job.
func reportJobs(w io.Writer, eng *engine.Engine, ids []string) error {
	ctx := context.Background()
	jobs := make([]scanning.Job, 0, len(ids))
	for _, id := range ids {
		j, err := eng.GetScan(ctx, id)
		if err != nil {
			return err
		}
		jobs = append(jobs, j)
	}
	sort.SliceStable(jobs, func(i, k int) bool { return jobs[i].CreatedAt.Before(jobs[k].CreatedAt) })

	if outputFormat == outputJSON {
		return printJSON(w, jobs)
	}

	table := newTable(w, "ID", "Target", "Type", "Status", "Attempts", "Open Ports", "Vulns", "Duration", "Error")
	var failed int
	for i := range jobs {
		j := &jobs[i]
		if j.Status == scanning.StatusFailed {
			failed++
		}
		_ = table.Append([]string{
			short(j.ID),
			j.Target,
			j.ScanType,
			string(j.Status),
			fmt.Sprint(j.Attempts),
			fmt.Sprint(j.OpenPorts),
			fmt.Sprint(j.Vulnerabilities),
			j.Duration().Round(time.Millisecond).String(),
			truncate(j.ErrorMessage, 60),
		})
	}
	if err := table.Render(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(jobs))
	}
	return nil
}
