package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Stop the shared Chrome and remove the lock record",
	Long: `Release is idempotent: it always attempts to stop the browser, even
when no lock record exists, and never fails on an already-released state.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d := buildDeps()
		if err := d.locks.Release(cmd.Context()); err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(map[string]bool{"released": true})
		}
		fmt.Println("Lock released")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(releaseCmd)
}
