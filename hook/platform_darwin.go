//go:build darwin && cgo

package hook

import "github.com/bryanchriswhite/winshift/internal/platform/cocoa"

func platformBackend(opts PlatformOptions) (Backend, error) {
	return cocoa.New(cocoa.Options{Slice: opts.WakeInterval}), nil
}
