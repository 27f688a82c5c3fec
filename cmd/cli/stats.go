package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/NubleX/LEGION2/internal/config"
	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/engine"
)

var (
	historyStatus string
	historyTarget string
	historyLimit  int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show scan and inventory statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd, func(ctx context.Context, _ *config.Config, eng *engine.Engine) error {
			snap, err := eng.Statistics(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if outputFormat == outputJSON {
				return printJSON(w, snap)
			}

			table := newTable(w, "Metric", "Value")
			rows := [][]string{
				{"Total scans", fmt.Sprint(snap.TotalScans)},
				{"Completed", fmt.Sprint(snap.CompletedScans)},
				{"Failed", fmt.Sprint(snap.FailedScans)},
				{"Cancelled", fmt.Sprint(snap.CancelledScans)},
				{"Hosts", fmt.Sprint(snap.TotalHostsDiscovered)},
				{"Open ports", fmt.Sprint(snap.TotalPortsDiscovered)},
				{"Findings", fmt.Sprint(snap.TotalVulnerabilities)},
				{"Total scan time", (time.Duration(snap.ScanTimeTotal * float64(time.Second))).Round(time.Second).String()},
				{"Average scan", (time.Duration(snap.AvgScanDuration * float64(time.Second))).Round(time.Millisecond).String()},
			}
			for _, r := range rows {
				_ = table.Append(r)
			}
			return table.Render()
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past scan jobs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd, func(ctx context.Context, _ *config.Config, eng *engine.Engine) error {
			scans, err := eng.ScanHistory(ctx, db.ScanFilter{
				Status: historyStatus,
				Target: historyTarget,
				Limit:  historyLimit,
			})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if outputFormat == outputJSON {
				return printJSON(w, nonNil(scans))
			}
			if len(scans) == 0 {
				fmt.Fprintln(w, "No scans found")
				return nil
			}

			table := newTable(w, "ID", "Target", "Type", "Status", "Attempts", "Open Ports", "Vulns", "Created", "Duration")
			for i := range scans {
				s := &scans[i]
				_ = table.Append([]string{
					short(s.ID),
					s.Target,
					s.ScanType,
					s.Status,
					fmt.Sprint(s.Attempts),
					fmt.Sprint(s.OpenPorts),
					fmt.Sprint(s.Vulnerabilities),
					formatTime(s.CreatedAt),
					(time.Duration(s.DurationMS) * time.Millisecond).String(),
				})
			}
			return table.Render()
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, historyCmd)
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "filter by job status")
	historyCmd.Flags().StringVar(&historyTarget, "target", "", "filter by target")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum jobs to list")
}
