package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DrunkOnJava/ingestor-service/internal/store"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect ProcessingJob state",
	}
	cmd.AddCommand(newJobsListCmd())
	cmd.AddCommand(newJobsGetCmd())
	cmd.AddCommand(newJobsCancelCmd())
	return cmd
}

func newJobsListCmd() *cobra.Command {
	var (
		state string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, optionally filtered by state",
		RunE: func(c *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			var st store.JobState
			if state != "" {
				st = store.JobState(strings.ToLower(state))
			}
			jobs, err := svc.ListJobs(c.Context(), st, limit)
			if err != nil {
				return err
			}
			for _, j := range jobs {
				fmt.Fprintf(c.OutOrStdout(), "%s  %-10s  %d/%d ok, %d failed\n",
					j.ID, j.State, j.ItemsSuccessful, j.ItemsTotal, j.ItemsFailed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "filter by state (pending, processing, completed, failed, canceled)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum jobs to list")
	return cmd
}

func newJobsGetCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show one job's detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			job, err := svc.GetJob(c.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(c.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(job)
			}
			fmt.Fprintf(c.OutOrStdout(), "id=%s state=%s items=%d/%d failed=%d progress=%d%%\n",
				job.ID, job.State, job.ItemsSuccessful, job.ItemsTotal, job.ItemsFailed, job.Progress)
			if job.ErrorSummary != "" {
				fmt.Fprintf(c.OutOrStdout(), "error: %s\n", job.ErrorSummary)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func newJobsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job run by this process (no-op for a finished job or one run by another process)",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()
			svc.Cancel(args[0])
			fmt.Fprintf(c.OutOrStdout(), "cancel requested for %s\n", args[0])
			return nil
		},
	}
}
