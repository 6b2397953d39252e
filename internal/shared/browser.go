package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// openers maps a GOOS value to the command used to hand a URL or path to the desktop.
var openers = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"windows": {"cmd", "/c", "start"},
}

// OpenURL opens a URL (or a local file/directory path) with the platform's default handler.
//
// Supports macOS, Linux, and Windows platforms.
func OpenURL(target string) error {
	rt := getRuntime()
	opener, ok := openers[rt]
	if !ok {
		return fmt.Errorf("%w: unsupported platform: %s", ErrNotImplemented, rt)
	}

	args := append(append([]string{}, opener[1:]...), target)
	if err := exec.Command(opener[0], args...).Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", target, err)
	}

	return nil
}
