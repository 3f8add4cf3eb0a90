package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/multiget/internal/output"
	"github.com/tanq16/multiget/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [OUTPUT_PATH]",
		Short: "Clean up temporary part and lock files",
		Long: `Remove leftovers of an interrupted download. With an output path only that
artifact's part and lock files are removed; without one the whole temporary
directory under --dir is cleared.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var err error
			if len(args) == 0 {
				err = utils.CleanDir(settings.OutputDir)
			} else {
				err = utils.Clean(args[0])
			}
			if err != nil {
				output.PrintError(fmt.Sprintf("Error cleaning up temporary files: %v", err))
				os.Exit(1)
			}
			output.PrintSuccess("Temporary files cleaned up")
		},
	}
}
