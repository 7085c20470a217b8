package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var statusFilter string

// jobsCmd represents the jobs command
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect jobs on a running server",
	Long:  `Commands for listing and managing generation jobs tracked by a running livegen server.`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Get job status",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Evict a job from the store",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsDelete,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsDeleteCmd)

	jobsListCmd.Flags().StringVar(&statusFilter, "status", "", "filter by status (pending, delivered, failed, ...)")
}

// apiJob mirrors the server's job view
type apiJob struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

func apiRequest(method, path string) (*http.Response, error) {
	req, err := http.NewRequest(method, ServerURL()+path, nil)
	if err != nil {
		return nil, err
	}
	if serverKey != "" {
		req.Header.Set("Authorization", "Bearer "+serverKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server at %s: %w", ServerURL(), err)
	}
	return resp, nil
}

func apiGet(path string, out any) error {
	resp, err := apiRequest(http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server error: %s", apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	path := "/api/v1/jobs"
	if statusFilter != "" {
		path += "?status=" + statusFilter
	}

	var result struct {
		Jobs  []apiJob `json:"jobs"`
		Count int      `json:"count"`
	}
	if err := apiGet(path, &result); err != nil {
		return err
	}

	if IsJSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	if result.Count == 0 {
		fmt.Println("No jobs found.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Job ID", "Type", "Status", "Error", "Created", "Updated")
	for _, job := range result.Jobs {
		errMsg := job.Error
		if len(errMsg) > 40 {
			errMsg = errMsg[:37] + "..."
		}
		table.Append(job.ID, job.Type, job.Status, errMsg,
			job.CreatedAt.Format(time.RFC3339), job.LastUpdated.Format(time.RFC3339))
	}
	table.Render()
	fmt.Printf("\n%d job(s)\n", result.Count)
	return nil
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	var job apiJob
	if err := apiGet("/api/v1/jobs/"+args[0], &job); err != nil {
		return err
	}

	if IsJSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(job)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("Job ID", job.ID)
	table.Append("Type", job.Type)
	table.Append("Status", job.Status)
	if job.Error != "" {
		table.Append("Error", job.Error)
	}
	table.Append("Created", job.CreatedAt.Format(time.RFC3339))
	table.Append("Updated", job.LastUpdated.Format(time.RFC3339))
	table.Render()
	return nil
}

func runJobsDelete(cmd *cobra.Command, args []string) error {
	resp, err := apiRequest(http.MethodDelete, "/api/v1/jobs/"+args[0])
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		fmt.Printf("Job %s removed.\n", args[0])
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("job %s not found", args[0])
	default:
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
}
