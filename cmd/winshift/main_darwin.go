//go:build darwin

package main

import "runtime"

// AppKit delivers workspace notifications on the main thread, and the hook
// runs on the main goroutine.
func init() {
	runtime.LockOSThread()
}
