package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/multiget/internal/output"
	"github.com/tanq16/multiget/internal/scheduler"
)

func newPlanCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "plan [URL]",
		Short: "Print the download plan and segment table without downloading",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			job := newJob(args[0], name)
			prepared, err := scheduler.Plan(&job)
			if err != nil {
				output.PrintError(fmt.Sprintf("Planning failed: %v", err))
				os.Exit(1)
			}
			fmt.Print(output.RenderPlan(prepared))
			fmt.Println()
			output.PrintInfo(fmt.Sprintf("Output: %s", job.OutputPath))
		},
	}
	cmd.Flags().StringVarP(&name, "output", "o", "", "Output file name")
	return cmd
}
