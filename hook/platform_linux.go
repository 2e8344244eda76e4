//go:build linux

package hook

import "github.com/bryanchriswhite/winshift/internal/platform/x11"

func platformBackend(opts PlatformOptions) (Backend, error) {
	return x11.New(x11.Options{Display: opts.X11Display}), nil
}
