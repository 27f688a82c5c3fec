package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/NubleX/LEGION2/internal/config"
	"github.com/NubleX/LEGION2/internal/engine"
	"github.com/NubleX/LEGION2/internal/logging"
	"github.com/NubleX/LEGION2/internal/scheduler"
)

// schedulesCmd represents the schedules command.
var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "Inspect and run the configured recurring scans",
	Long: `Recurring scans are declared under "schedules" in the configuration file
and fired by "legion serve". These commands show them and run one on demand.`,
}

var schedulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured schedules and their next run",
	Args:  cobra.NoArgs,
	RunE:  runSchedulesList,
}

var schedulesRunCmd = &cobra.Command{
	Use:   "run NAME",
	Short: "Run a schedule now and wait for its jobs",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedulesRun,
}

func init() {
	rootCmd.AddCommand(schedulesCmd)
	schedulesCmd.AddCommand(schedulesListCmd, schedulesRunCmd)

	f := schedulesRunCmd.Flags()
	f.BoolVarP(&scanQuiet, "quiet", "q", false, "do not print progress")
	f.DurationVar(&scanWaitDeadline, "wait", 0, "give up waiting after this long and cancel (0 waits forever)")
}

type scheduleView struct {
	config.ScheduleConfig
	NextRun time.Time `json:"next_run"`
}

func scheduleSelector(sc config.ScheduleConfig) string {
	switch {
	case sc.Target != "":
		return "target " + sc.Target
	case sc.CIDR != "":
		return "range " + sc.CIDR
	default:
		return "tag " + sc.Tag
	}
}

func runSchedulesList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	now := time.Now()
	views := make([]scheduleView, 0, len(cfg.Schedules))
	for _, sc := range cfg.Schedules {
		sched, err := cron.ParseStandard(sc.Cron)
		if err != nil {
			return fmt.Errorf("schedule %q: %w", sc.Name, err)
		}
		views = append(views, scheduleView{ScheduleConfig: sc, NextRun: sched.Next(now)})
	}

	w := cmd.OutOrStdout()
	if outputFormat == outputJSON {
		return printJSON(w, views)
	}
	if len(views) == 0 {
		fmt.Fprintln(w, "No schedules configured")
		return nil
	}

	table := newTable(w, "Name", "Cron", "Selector", "Scan Type", "Next Run")
	for _, v := range views {
		_ = table.Append([]string{v.Name, v.Cron, scheduleSelector(v.ScheduleConfig), v.ScanType, formatTime(v.NextRun)})
	}
	return table.Render()
}

func runSchedulesRun(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, cfg *config.Config, eng *engine.Engine) error {
		sched := scheduler.NewScheduler(eng, logging.Default())
		if err := sched.Load(cfg.Schedules); err != nil {
			return err
		}

		var job *scheduler.ScheduledJob
		for _, j := range sched.Jobs() {
			if j.Config.Name == args[0] {
				job = &j
				break
			}
		}
		if job == nil {
			return fmt.Errorf("no schedule named %q", args[0])
		}

		sub := eng.Subscribe()
		defer sub.Close()

		if err := sched.RunNow(job.ID); err != nil {
			return err
		}
		for _, j := range sched.Jobs() {
			if j.ID != job.ID {
				continue
			}
			if j.LastError != "" && len(j.LastJobIDs) == 0 {
				return fmt.Errorf("schedule %q: %s", j.Config.Name, j.LastError)
			}
			if len(j.LastJobIDs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Schedule submitted no jobs")
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Schedule %q queued %d jobs\n", j.Config.Name, len(j.LastJobIDs))
			return waitAndReport(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), eng, sub, j.LastJobIDs)
		}
		return nil
	})
}
