package chrome

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pinchtab/pinchlock/internal/config"
)

var osGOOS = runtime.GOOS

// Absolute install locations probed before falling back to PATH lookup.
var chromePaths = map[string][]string{
	"darwin": {
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
	},
	"linux": {
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/snap/bin/chromium",
	},
}

var chromeNames = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"}

// binary resolves the Chrome executable: explicit CHROME_BINARY wins,
// then well-known install locations, then PATH.
func (s *Supervisor) binary() (string, error) {
	if s.cfg.ChromeBinary != "" {
		return s.cfg.ChromeBinary, nil
	}
	for _, p := range chromePaths[osGOOS] {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	for _, name := range chromeNames {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no Chrome binary found; set CHROME_BINARY")
}

// ResolveHeadless decides headless mode once per launch. An explicit
// override wins; "auto" infers from display-server presence: no graphical
// display means headless. Pure function of its inputs for testability.
func ResolveHeadless(mode string, getenv func(string) string, goos string) bool {
	switch mode {
	case "true":
		return true
	case "false":
		return false
	}
	if goos == "linux" {
		return getenv("DISPLAY") == "" && getenv("WAYLAND_DISPLAY") == ""
	}
	// macOS and Windows always have a display server.
	return false
}

func launchArgs(cfg *config.RuntimeConfig, headless bool) []string {
	args := []string{
		"--remote-debugging-port=" + cfg.Port,
		"--user-data-dir=" + cfg.ProfileDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-sync",
		"--disable-default-apps",
		"--disable-session-crashed-bubble",
		"--hide-crash-restore-bubble",
		"--disable-popup-blocking",
	}
	if headless {
		args = append(args, "--headless=new", "--disable-gpu")
	}
	for _, f := range strings.Fields(cfg.ChromeExtraFlags) {
		if !strings.HasPrefix(f, "--") {
			f = "--" + strings.TrimLeft(f, "-")
		}
		args = append(args, f)
	}
	return args
}
