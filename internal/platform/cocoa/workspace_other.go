//go:build !(darwin && cgo)

package cocoa

func systemWorkspace() workspace {
	return nil
}
