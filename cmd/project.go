/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/adb-analytics/apiserver/internal/analytics"
	"github.com/adb-analytics/apiserver/internal/projectstore"
	"github.com/adb-analytics/apiserver/internal/session"
	"github.com/adb-analytics/apiserver/internal/validation"
	"github.com/adb-analytics/apiserver/types"
	"github.com/spf13/cobra"
)

const dateOut = "2006-01-02"

var projectInput validation.ProjectInput

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Capture and list development projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := validation.ValidateProject(projectInput); err != nil {
			return err
		}
		env, err := newClientEnv()
		if err != nil {
			return err
		}
		if err := env.requireLogin(); err != nil {
			return err
		}
		project, err := env.api.CreateProject(cmd.Context(), projectInput)
		if err != nil {
			return explain(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", project.ProjectName, project.ID)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newClientEnv()
		if err != nil {
			return err
		}
		if err := env.requireLogin(); err != nil {
			return err
		}
		projects, err := env.api.ListProjects(cmd.Context())
		if err != nil {
			return explain(err)
		}
		printProjects(cmd.OutOrStdout(), projects)
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Summarize your projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newClientEnv()
		if err != nil {
			return err
		}
		if err := env.requireLogin(); err != nil {
			return err
		}
		projects, err := env.api.ListProjects(cmd.Context())
		if err != nil {
			return explain(err)
		}

		store := projectstore.New()
		unbind := session.BindStore(env.session, store)
		defer unbind()

		var summary analytics.Summary
		cancel := store.Subscribe(func(snapshot []types.Project) {
			summary = analytics.Summarize(snapshot)
		})
		defer cancel()
		for _, p := range projects {
			store.Add(p)
		}

		printAnalysis(cmd.OutOrStdout(), summary, analytics.BuildCharts(store.List()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectCmd, analyzeCmd)
	projectCmd.AddCommand(projectAddCmd, projectListCmd)

	f := projectAddCmd.Flags()
	f.StringVar(&projectInput.ProjectName, "name", "", "project name")
	f.StringVar(&projectInput.Country, "country", "", "country the project is located in")
	f.Float64Var(&projectInput.Budget, "budget", 0, "budget in USD")
	f.StringVar(&projectInput.StartDate, "start", "", "start date, YYYY-MM-DD")
	f.StringVar(&projectInput.EndDate, "end", "", "end date, YYYY-MM-DD")
	f.StringVar(&projectInput.Description, "description", "", "short description")
}

func printProjects(out io.Writer, projects []types.Project) {
	if len(projects) == 0 {
		fmt.Fprintln(out, "no projects yet")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCOUNTRY\tBUDGET\tSTART\tEND")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n",
			p.ProjectName, p.Country, p.Budget, p.StartDate.Format(dateOut), p.EndDate.Format(dateOut))
	}
	_ = tw.Flush()
}

func printAnalysis(out io.Writer, summary analytics.Summary, charts analytics.Charts) {
	fmt.Fprintf(out, "Projects:          %d\n", summary.TotalProjects)
	fmt.Fprintf(out, "Total budget:      %.2f\n", summary.TotalBudget)
	fmt.Fprintf(out, "Average budget:    %.2f\n", summary.AverageBudget)
	fmt.Fprintf(out, "Countries covered: %d\n", summary.CountriesCovered)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nCOUNTRY\tPROJECTS")
	for _, p := range charts.Countries {
		fmt.Fprintf(tw, "%s\t%.0f\n", p.Label, p.Value)
	}
	fmt.Fprintln(tw, "\nPROJECT\tBUDGET")
	for _, p := range charts.Budget {
		fmt.Fprintf(tw, "%s\t%.2f\n", p.Label, p.Value)
	}
	fmt.Fprintln(tw, "\nPROJECT\tSTART\tEND")
	for _, s := range charts.Timeline {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Label, s.Start.Format(dateOut), s.End.Format(dateOut))
	}
	_ = tw.Flush()
}
