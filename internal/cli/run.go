package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/pinchtab/pinchlock/internal/runner"
)

var runTimeoutSec int

var runCmd = &cobra.Command{
	Use:   "run [--timeout N] <command> [args...]",
	Short: "Run one automation task under the lock with a watchdog deadline",
	Long: `Run acquires the lock, starts Chrome if needed, spawns the consumer
command with PINCHLOCK_PORT and PINCHLOCK_CDP_URL in its environment, and
races it against a watchdog. Whichever way the run ends, the lock is
released and the browser stopped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d := buildDeps()

		timeout := d.cfg.RunTimeout
		if runTimeoutSec > 0 {
			timeout = time.Duration(runTimeoutSec) * time.Second
		}

		env := []string{
			"PINCHLOCK_PORT=" + d.cfg.Port,
			"PINCHLOCK_CDP_URL=" + d.cfg.DebugURL(),
		}
		r := runner.New(d.locks, d.mon, d.cfg.GracePeriod, env)

		code, err := r.Run(cmd.Context(), args[0], args[1:], timeout)
		if err != nil {
			return err
		}
		if code != 0 {
			return &consumerExitError{code: code}
		}
		return nil
	},
}

func init() {
	// Flags after the consumer command belong to the consumer.
	runCmd.Flags().SetInterspersed(false)
	runCmd.Flags().IntVar(&runTimeoutSec, "timeout", 0, "watchdog deadline in seconds (default from config)")
	rootCmd.AddCommand(runCmd)
}
