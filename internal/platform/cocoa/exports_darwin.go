//go:build darwin && cgo

package cocoa

/*
#include <stdint.h>
*/
import "C"

import "runtime/cgo"

//export winshiftFocusChanged
func winshiftFocusChanged(handle C.uintptr_t) {
	if onChange, ok := cgo.Handle(handle).Value().(func()); ok {
		onChange()
	}
}
