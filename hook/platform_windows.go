//go:build windows

package hook

import "github.com/bryanchriswhite/winshift/internal/platform/win32"

func platformBackend(opts PlatformOptions) (Backend, error) {
	return win32.New(win32.Options{WakeInterval: opts.WakeInterval}), nil
}
