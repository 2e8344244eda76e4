//go:build !windows

package win32

func systemUser32() user32 {
	return nil
}
