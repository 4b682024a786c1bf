package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ebu/mcma-projects-sub000/pkg/jobstore"
	"github.com/ebu/mcma-projects-sub000/pkg/model"
	"github.com/ebu/mcma-projects-sub000/pkg/resourcestore"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect jobs in the local store",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	Long: `List jobs in the local store, newest first.

Examples:
  # List the most recent jobs
  jobprocessor jobs list

  # List failed jobs as JSON
  jobprocessor jobs list --status Failed --json`,
	RunE: runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job and its executions",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)

	jobsListCmd.Flags().String("status", "", "Filter by status")
	jobsListCmd.Flags().Int("limit", 20, "Maximum number of jobs")
	jobsListCmd.Flags().Bool("json", false, "Output as JSON")
	jobsShowCmd.Flags().Bool("json", false, "Output as JSON")
}

// openStore opens the local store read path the way serve does.
func openStore(cmd *cobra.Command) (*jobstore.Store, func(), error) {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	rs, err := resourcestore.Open(ctx, resourcestore.Config{
		Path:      cfg.Store.Path,
		URL:       cfg.Store.URL,
		AuthToken: cfg.Store.AuthToken,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open resource store: %w", err)
	}
	return jobstore.New(rs, cfg.BaseURL()), func() { _ = rs.Close() }, nil
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	store, closeStore, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	statusFlag, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	q := jobstore.JobQuery{Limit: limit}
	if statusFlag != "" {
		status := model.JobStatus(statusFlag)
		if !status.IsValid() {
			return fmt.Errorf("unknown status %q", statusFlag)
		}
		q.Status = status
	}

	jobs, err := store.QueryJobs(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		_, _ = fmt.Fprintln(os.Stderr, "No jobs found")
		return nil
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tPROGRESS\tCREATED")
	for _, job := range jobs {
		progress := "-"
		if job.Progress != nil {
			progress = fmt.Sprintf("%d%%", *job.Progress)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			job.ID, job.JobType, job.Status, progress,
			job.DateCreated.Local().Format(time.RFC3339))
	}
	return w.Flush()
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	jsonOutput, _ := cmd.Flags().GetBool("json")

	job, err := store.GetJob(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	execs, err := store.GetExecutions(cmd.Context(), job.ID)
	if err != nil {
		return fmt.Errorf("get executions: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Job        *model.Job           `json:"job"`
			Executions []model.JobExecution `json:"executions"`
		}{job, execs})
	}

	fmt.Printf("Job:      %s\n", job.ID)
	fmt.Printf("Type:     %s\n", job.JobType)
	fmt.Printf("Profile:  %s\n", job.JobProfileID)
	fmt.Printf("Status:   %s\n", job.Status)
	if job.StatusMessage != "" {
		fmt.Printf("Message:  %s\n", job.StatusMessage)
	}
	if job.Error != nil {
		fmt.Printf("Error:    %s: %s\n", job.Error.Type, job.Error.Title)
	}

	if len(execs) == 0 {
		return nil
	}
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "EXECUTION\tSTATUS\tASSIGNMENT\tDURATION")
	for _, exec := range execs {
		duration := "-"
		if exec.ActualDuration != nil {
			duration = (time.Duration(*exec.ActualDuration) * time.Millisecond).String()
		}
		assignment := exec.JobAssignmentID
		if assignment == "" {
			assignment = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", exec.ID, exec.Status, assignment, duration)
	}
	return w.Flush()
}
