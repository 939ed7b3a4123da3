package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mimir-aip/activelearn/pkg/report"
)

var (
	runsLimit  int
	showMetric string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List, show and delete stored runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := st.ListRuns(runsLimit)
		if err != nil {
			return err
		}
		report.Runs(cmd.OutOrStdout(), runs)
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Print the tables and learning curve of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := st.GetRun(args[0])
		if err != nil {
			return err
		}
		return printRun(cmd, run, showMetric)
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete [run-id]",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteRun(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list (0 for all)")
	runsShowCmd.Flags().StringVar(&showMetric, "metric", "", "Metric to plot")
	runsCmd.AddCommand(runsShowCmd, runsDeleteCmd)
}
