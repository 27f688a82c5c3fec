package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NubleX/LEGION2/internal/config"
	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/engine"
)

var (
	vulnsHost        string
	vulnsMinSeverity string
	vulnsLimit       int
)

// vulnsCmd represents the vulns command.
var vulnsCmd = &cobra.Command{
	Use:     "vulns",
	Aliases: []string{"vulnerabilities"},
	Short:   "List findings across the inventory",
	Long: `List the findings recorded by scans, most severe first. Findings can be
limited to one host, given by id or IP address, and to a minimum severity.`,
	Example: `  legion vulns
  legion vulns --min-severity high
  legion vulns --host 10.0.0.5`,
	Args: cobra.NoArgs,
	RunE: runVulns,
}

func init() {
	rootCmd.AddCommand(vulnsCmd)
	f := vulnsCmd.Flags()
	f.StringVar(&vulnsHost, "host", "", "only findings of this host (id or IP)")
	f.StringVar(&vulnsMinSeverity, "min-severity", "", "low, medium, high or critical")
	f.IntVar(&vulnsLimit, "limit", 0, "maximum findings to list (0 lists all)")
}

func runVulns(cmd *cobra.Command, _ []string) error {
	return withEngine(cmd, func(ctx context.Context, _ *config.Config, eng *engine.Engine) error {
		filter := db.VulnerabilityFilter{MinSeverity: vulnsMinSeverity, Limit: vulnsLimit}
		if vulnsHost != "" {
			d, err := eng.GetHostDetails(ctx, vulnsHost)
			if err != nil {
				return err
			}
			filter.HostID = d.Host.ID
		}

		vulns, err := eng.ListVulnerabilities(ctx, filter)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if outputFormat == outputJSON {
			return printJSON(w, nonNil(vulns))
		}
		if len(vulns) == 0 {
			fmt.Fprintln(w, "No findings")
			return nil
		}

		table := newTable(w, "Severity", "Host", "Name", "CVE", "Description", "Discovered")
		for _, v := range vulns {
			_ = table.Append([]string{
				v.Severity,
				v.HostIP,
				truncate(v.Name, 40),
				deref(v.CVEID),
				truncate(v.Description, 60),
				formatTime(v.DiscoveredAt),
			})
		}
		return table.Render()
	})
}
