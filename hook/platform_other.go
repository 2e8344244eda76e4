//go:build !linux && !windows && !(darwin && cgo)

package hook

import (
	"runtime"

	"github.com/bryanchriswhite/winshift/focus"
)

func platformBackend(PlatformOptions) (Backend, error) {
	reason := "Unsupported platform: " + runtime.GOOS
	if runtime.GOOS == "darwin" {
		reason = "macOS support requires cgo"
	}
	return nil, &focus.PlatformError{Reason: reason}
}
