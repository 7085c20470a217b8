package cmd

import (
	"encoding/json"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nodeforge/livegen/pkg/nodes"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List the registered generation nodes",
	Long:  `Lists every node the pack registers with a graph host, with its category and job type.`,
	RunE:  runNodesList,
}

func init() {
	rootCmd.AddCommand(nodesCmd)
}

func runNodesList(cmd *cobra.Command, args []string) error {
	specs := nodes.All()

	if IsJSONOutput() {
		views := make([]map[string]string, 0, len(specs))
		for _, spec := range specs {
			views = append(views, map[string]string{
				"name":         spec.Name,
				"display_name": spec.DisplayName,
				"category":     spec.Category,
				"job_type":     spec.JobType,
			})
		}
		return json.NewEncoder(os.Stdout).Encode(views)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Name", "Display Name", "Category", "Job Type")
	for _, spec := range specs {
		table.Append(spec.Name, spec.DisplayName, spec.Category, spec.JobType)
	}
	table.Render()
	return nil
}
