/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/adb-analytics/apiserver/internal/analytics"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Archive and browse summary reports",
}

var reportArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Store a snapshot of the current summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newClientEnv()
		if err != nil {
			return err
		}
		if err := env.requireLogin(); err != nil {
			return err
		}
		key, err := env.api.ArchiveReport(cmd.Context())
		if err != nil {
			return explain(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "archived %s\n", key)
		return nil
	},
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newClientEnv()
		if err != nil {
			return err
		}
		if err := env.requireLogin(); err != nil {
			return err
		}
		reports, err := env.api.ListReports(cmd.Context())
		if err != nil {
			return explain(err)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tGENERATED\tSIZE")
		for _, r := range reports {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", r.ID, r.GeneratedAt.Local().Format(time.RFC3339), r.Size)
		}
		return tw.Flush()
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print an archived report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newClientEnv()
		if err != nil {
			return err
		}
		if err := env.requireLogin(); err != nil {
			return err
		}
		report, err := env.api.Report(cmd.Context(), args[0])
		if err != nil {
			return explain(err)
		}
		charts := analytics.Charts{Budget: report.Budget, Countries: report.Countries, Timeline: report.Timeline}
		printAnalysis(cmd.OutOrStdout(), report.Summary, charts)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportArchiveCmd, reportListCmd, reportShowCmd)
}
