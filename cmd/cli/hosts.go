package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NubleX/LEGION2/internal/config"
	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/engine"
)

const defaultHostsLimit = 100

var (
	hostsStatus      string
	hostsOSFamily    string
	hostsSearch      string
	hostsTag         string
	hostsMinSeverity string
	hostsVulnerable  bool
	hostsMinPorts    int
	hostsMaxPorts    int
	hostsLastSeen    int
	hostsLimit       int
	hostsOffset      int
)

// hostsCmd represents the hosts command.
var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "List and manage inventory hosts",
	Long: `View and manage the hosts recorded by scans. Without a subcommand the
hosts matching the filters are listed, most recently seen first.`,
	Example: `  legion hosts
  legion hosts --status up --os linux
  legion hosts --vulnerable --min-severity high
  legion hosts list --search web --last-seen 7
  legion hosts show 9b1c...
  legion hosts show 10.0.0.5
  legion hosts delete-port 10.0.0.5 8080/tcp`,
	Args: cobra.NoArgs,
	RunE: runHosts,
}

var hostsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List inventory hosts",
	Args:  cobra.NoArgs,
	RunE:  runHosts,
}

var hostsShowCmd = &cobra.Command{
	Use:   "show ID|IP",
	Short: "Show a host with its ports, findings and recent scans",
	Args:  cobra.ExactArgs(1),
	RunE:  runHostsShow,
}

var hostsDeleteCmd = &cobra.Command{
	Use:   "delete ID...",
	Short: "Delete hosts and everything they own",
	Long: `Delete one or more hosts together with their ports, findings, script
output and tags. Missing ids are reported but do not stop the others.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHostsDelete,
}

var hostsDeletePortCmd = &cobra.Command{
	Use:   "delete-port ID|IP PORT",
	Short: "Delete one port of a host",
	Long: `Delete one port of a host. PORT is a port id or NUMBER/PROTOCOL such as
443/tcp; a bare number means tcp. Findings and script output recorded on the
port stay on the host.`,
	Args: cobra.ExactArgs(2),
	RunE: runHostsDeletePort,
}

var hostsTagCmd = &cobra.Command{
	Use:   "tag ID TAG",
	Short: "Attach a tag to a host",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, _ *config.Config, eng *engine.Engine) error {
			if err := eng.TagHost(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tagged %s with %q\n", args[0], args[1])
			return nil
		})
	},
}

var hostsUntagCmd = &cobra.Command{
	Use:   "untag ID TAG",
	Short: "Remove a tag from a host",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, _ *config.Config, eng *engine.Engine) error {
			if err := eng.UntagHost(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed tag %q from %s\n", args[1], args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(hostsCmd)
	hostsCmd.AddCommand(hostsListCmd, hostsShowCmd, hostsDeleteCmd, hostsDeletePortCmd, hostsTagCmd, hostsUntagCmd)

	f := hostsCmd.Flags()
	f.StringVar(&hostsStatus, "status", "", "filter by status: up, down, unknown")
	f.StringVar(&hostsOSFamily, "os", "", "filter by OS family")
	f.StringVar(&hostsSearch, "search", "", "match IP, hostname or OS name")
	f.StringVar(&hostsTag, "tag", "", "only hosts carrying this tag")
	f.StringVar(&hostsMinSeverity, "min-severity", "", "only hosts with a finding at least this severe")
	f.BoolVar(&hostsVulnerable, "vulnerable", false, "only hosts with findings")
	f.IntVar(&hostsMinPorts, "min-ports", -1, "minimum open ports")
	f.IntVar(&hostsMaxPorts, "max-ports", -1, "maximum open ports")
	f.IntVar(&hostsLastSeen, "last-seen", 0, "only hosts seen within this many days")
	f.IntVar(&hostsLimit, "limit", defaultHostsLimit, "maximum hosts to list")
	f.IntVar(&hostsOffset, "offset", 0, "hosts to skip")
	hostsListCmd.Flags().AddFlagSet(f)
}

// buildHostsFilter turns the command flags into an inventory filter.
func buildHostsFilter() db.HostFilter {
	f := db.HostFilter{
		Status:       hostsStatus,
		OSFamily:     hostsOSFamily,
		Search:       hostsSearch,
		Tag:          hostsTag,
		MinSeverity:  hostsMinSeverity,
		LastSeenDays: hostsLastSeen,
		Limit:        hostsLimit,
		Offset:       hostsOffset,
	}
	if hostsVulnerable {
		v := true
		f.HasVulnerabilities = &v
	}
	if hostsMinPorts >= 0 {
		n := hostsMinPorts
		f.MinPorts = &n
	}
	if hostsMaxPorts >= 0 {
		n := hostsMaxPorts
		f.MaxPorts = &n
	}
	return f
}

func runHosts(cmd *cobra.Command, _ []string) error {
	return withEngine(cmd, func(ctx context.Context, _ *config.Config, eng *engine.Engine) error {
		hosts, total, err := eng.GetHosts(ctx, buildHostsFilter())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()

		if outputFormat == outputJSON {
			return printJSON(w, struct {
				Hosts []db.Host `json:"hosts"`
				Total int       `json:"total"`
			}{Hosts: nonNil(hosts), Total: total})
		}

		if len(hosts) == 0 {
			fmt.Fprintln(w, "No hosts found")
			return nil
		}
		displayHostsTable(w, hosts)
		fmt.Fprintf(w, "Showing %d of %d hosts\n", len(hosts), total)
		return nil
	})
}

func displayHostsTable(w io.Writer, hosts []db.Host) {
	table := newTable(w, "ID", "IP", "Hostname", "OS", "Status", "Ports", "Vulns", "Last Seen")
	for i := range hosts {
		h := &hosts[i]
		osName := deref(h.OSName)
		if osName == "" {
			osName = deref(h.OSFamily)
		}
		_ = table.Append([]string{
			short(h.ID),
			h.IP,
			truncate(deref(h.Hostname), 32),
			truncate(osName, 24),
			h.Status,
			fmt.Sprint(h.PortCount),
			fmt.Sprint(h.VulnerabilityCount),
			formatTime(h.LastSeen),
		})
	}
	_ = table.Render()
}

func runHostsShow(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, _ *config.Config, eng *engine.Engine) error {
		d, err := eng.GetHostDetails(ctx, args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if outputFormat == outputJSON {
			return printJSON(w, d)
		}
		displayHostDetails(w, d)
		return nil
	})
}

func displayHostDetails(w io.Writer, d *db.HostDetails) {
	h := d.Host
	fmt.Fprintf(w, "Host:      %s\n", h.IP)
	fmt.Fprintf(w, "ID:        %s\n", h.ID)
	fmt.Fprintf(w, "Status:    %s\n", h.Status)
	if h.Hostname != nil {
		fmt.Fprintf(w, "Hostname:  %s\n", *h.Hostname)
	}
	if h.MACAddress != nil {
		fmt.Fprintf(w, "MAC:       %s %s\n", *h.MACAddress, deref(h.Vendor))
	}
	if h.OSName != nil {
		fmt.Fprintf(w, "OS:        %s\n", *h.OSName)
	}
	if len(d.Tags) > 0 {
		fmt.Fprintf(w, "Tags:      %s\n", strings.Join(d.Tags, ", "))
	}
	fmt.Fprintf(w, "Last seen: %s\n", formatTime(h.LastSeen))

	if len(d.Ports) > 0 {
		fmt.Fprintln(w, "\nPorts:")
		table := newTable(w, "Port", "State", "Service", "Version")
		for _, p := range d.Ports {
			_ = table.Append([]string{
				fmt.Sprintf("%d/%s", p.Number, p.Protocol),
				p.State,
				deref(p.Service),
				truncate(deref(p.Version), 40),
			})
		}
		_ = table.Render()
	}

	if len(d.Vulnerabilities) > 0 {
		fmt.Fprintln(w, "\nFindings:")
		table := newTable(w, "Severity", "Name", "CVE", "Description")
		for _, v := range d.Vulnerabilities {
			_ = table.Append([]string{v.Severity, truncate(v.Name, 40), deref(v.CVEID), truncate(v.Description, 60)})
		}
		_ = table.Render()
	}

	if len(d.RecentScans) > 0 {
		fmt.Fprintln(w, "\nRecent scans:")
		table := newTable(w, "ID", "Type", "Status", "Created")
		for _, s := range d.RecentScans {
			_ = table.Append([]string{short(s.ID), s.ScanType, s.Status, formatTime(s.CreatedAt)})
		}
		_ = table.Render()
	}
}

func runHostsDelete(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, _ *config.Config, eng *engine.Engine) error {
		if len(args) == 1 {
			if err := eng.DeleteHost(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted host %s\n", args[0])
			return nil
		}

		n, err := eng.DeleteHosts(ctx, args)
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d of %d hosts\n", n, len(args))
		return err
	})
}

func runHostsDeletePort(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, _ *config.Config, eng *engine.Engine) error {
		d, err := eng.GetHostDetails(ctx, args[0])
		if err != nil {
			return err
		}
		portID := findPort(d.Ports, args[1])
		if err := eng.DeletePort(ctx, d.Host.ID, portID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted port %s from %s\n", args[1], d.Host.IP)
		return nil
	})
}

// findPort resolves NUMBER[/PROTOCOL] against ports. Anything else is
// returned unchanged as a port id.
func findPort(ports []db.Port, spec string) string {
	number, protocol, found := strings.Cut(spec, "/")
	if !found {
		protocol = "tcp"
	}
	n, err := strconv.Atoi(number)
	if err != nil {
		return spec
	}
	for _, p := range ports {
		if p.Number == n && strings.EqualFold(p.Protocol, protocol) {
			return p.ID
		}
	}
	return spec
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
