package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NubleX/LEGION2/internal/config"
	"github.com/NubleX/LEGION2/internal/engine"
)

var projectDescription string

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd, func(ctx context.Context, _ *config.Config, eng *engine.Engine) error {
			projects, err := eng.ListProjects(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if outputFormat == outputJSON {
				return printJSON(w, nonNil(projects))
			}
			table := newTable(w, "ID", "Name", "Description", "Created")
			for i := range projects {
				p := &projects[i]
				_ = table.Append([]string{short(p.ID), p.Name, truncate(deref(p.Description), 50), formatTime(p.CreatedAt)})
			}
			return table.Render()
		})
	},
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, _ *config.Config, eng *engine.Engine) error {
			p, err := eng.CreateProject(ctx, args[0], projectDescription)
			if err != nil {
				return err
			}
			if outputFormat == outputJSON {
				return printJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", p.Name, p.ID)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.AddCommand(projectsListCmd, projectsCreateCmd)
	projectsCreateCmd.Flags().StringVar(&projectDescription, "description", "", "project description")
}
