// Package cli wires the pinchlock command tree: acquire, release, status,
// and run, sharing one dependency stack built from runtime config.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pinchtab/pinchlock/internal/chrome"
	"github.com/pinchtab/pinchlock/internal/config"
	"github.com/pinchtab/pinchlock/internal/errclass"
	"github.com/pinchtab/pinchlock/internal/lock"
	"github.com/pinchtab/pinchlock/internal/proc"
)

// Exit codes per failure class. The consumer's own exit code passes
// through verbatim and may shadow these; 124 mirrors GNU timeout.
const (
	exitLockHeld     = 11
	exitLaunchFailed = 12
	exitTimeout      = 124
)

var (
	jsonOutput bool
	rootCmd    = &cobra.Command{
		Use:   "pinchlock",
		Short: "Time-share one remote-debuggable Chrome between exclusive consumers",
		Long: `pinchlock coordinates exclusive access to a single shared Chrome
instance between consumers that cannot hold the debugging connection at
the same time. It keeps one lock record on disk, detects stale and
expired holders, and supervises automation runs under a watchdog so the
browser is always released, even after a crash or hang.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
}

// Execute runs the root command and maps error classes to exit codes.
func Execute(version string) {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	var ce *consumerExitError
	if errors.As(err, &ce) {
		return ce.code
	}
	switch {
	case errors.Is(err, errclass.ErrLockHeld):
		return exitLockHeld
	case errors.Is(err, errclass.ErrLaunchFailed), errors.Is(err, errclass.ErrChromeUnavailable):
		return exitLaunchFailed
	case errors.Is(err, errclass.ErrRunTimeout):
		return exitTimeout
	}
	return 1
}

// consumerExitError carries the consumer's own non-zero exit code through
// cobra's error path unchanged.
type consumerExitError struct {
	code int
}

func (e *consumerExitError) Error() string {
	return fmt.Sprintf("consumer exited with code %d", e.code)
}

type deps struct {
	cfg   *config.RuntimeConfig
	mon   proc.OSMonitor
	sup   *chrome.Supervisor
	locks *lock.Manager
}

func buildDeps() *deps {
	cfg := config.Load()
	mon := proc.OSMonitor{}
	sup := chrome.NewSupervisor(cfg, mon)
	return &deps{
		cfg:   cfg,
		mon:   mon,
		sup:   sup,
		locks: lock.NewManager(cfg.StateDir, cfg.LockTimeout, mon, sup),
	}
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
