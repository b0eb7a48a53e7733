package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Reserve the shared Chrome and start it if needed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d := buildDeps()
		rec, err := d.locks.Acquire(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(rec)
		}
		fmt.Printf("Lock acquired (holder pid %d, chrome pid %d)\n", rec.HolderPID, rec.ChromePID)
		fmt.Printf("  CDP endpoint: %s\n", d.cfg.DebugURL())
		fmt.Printf("  Expires in:   %s unless released\n", d.cfg.LockTimeout.Round(time.Second))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(acquireCmd)
}
