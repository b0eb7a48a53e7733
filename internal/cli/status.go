package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lock and browser state without touching either",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d := buildDeps()
		st, err := d.locks.Status(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOutput {
			out := map[string]any{"lock": st}
			if st.ResourceHealthy {
				if v, err := d.sup.Version(cmd.Context()); err == nil {
					out["browser"] = v
				}
			}
			return outputJSON(out)
		}

		if st.Locked {
			fmt.Printf("Locked: yes (holder pid %d, %s, age %s)\n",
				st.HolderPID, st.State, (time.Duration(st.AgeSeconds) * time.Second))
			if st.Expired {
				fmt.Println("  Lock is past its timeout; next acquire will force-recover it")
			}
		} else if st.Stale {
			fmt.Printf("Locked: no (stale record from pid %d, will be recovered)\n", st.HolderPID)
		} else {
			fmt.Println("Locked: no")
		}

		if !st.ResourceHealthy {
			fmt.Printf("Chrome: not answering on %s\n", d.cfg.DebugURL())
			return nil
		}

		fmt.Printf("Chrome: healthy on %s", d.cfg.DebugURL())
		if st.ChromePID > 0 {
			fmt.Printf(" (pid %d)", st.ChromePID)
		}
		fmt.Println()
		if v, err := d.sup.Version(cmd.Context()); err == nil {
			fmt.Printf("  Version: %s\n", v.Browser)
		}
		if targets, err := d.sup.Targets(cmd.Context()); err == nil {
			for _, t := range targets {
				fmt.Printf("  Tab: %s  %s\n", t.Title, t.URL)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
