//go:build darwin && cgo

package cocoa

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework AppKit -framework ApplicationServices -framework Foundation

#include <stdint.h>
#include <stdlib.h>
#include <string.h>
#include <AppKit/AppKit.h>
#include <ApplicationServices/ApplicationServices.h>

void winshiftFocusChanged(uintptr_t handle);

@interface WinshiftFocusObserver : NSObject {
@public
    uintptr_t handle;
    CFRunLoopRef runLoop;
}
- (void)focusChanged:(NSNotification*)notification;
@end

@implementation WinshiftFocusObserver
- (void)focusChanged:(NSNotification*)notification {
    winshiftFocusChanged(handle);
}
@end

static void* winshiftSubscribe(uintptr_t handle) {
    @autoreleasepool {
        NSNotificationCenter* center = [[NSWorkspace sharedWorkspace] notificationCenter];
        if (center == nil) {
            return NULL;
        }

        WinshiftFocusObserver* obs = [[WinshiftFocusObserver alloc] init];
        if (obs == nil) {
            return NULL;
        }
        obs->handle = handle;
        obs->runLoop = (CFRunLoopRef)CFRetain(CFRunLoopGetCurrent());

        [center addObserver:obs
                   selector:@selector(focusChanged:)
                       name:NSWorkspaceDidActivateApplicationNotification
                     object:nil];
        [center addObserver:obs
                   selector:@selector(focusChanged:)
                       name:NSWorkspaceActiveSpaceDidChangeNotification
                     object:nil];
        return (void*)obs;
    }
}

static void winshiftUnsubscribe(void* ref) {
    @autoreleasepool {
        WinshiftFocusObserver* obs = (WinshiftFocusObserver*)ref;
        [[[NSWorkspace sharedWorkspace] notificationCenter] removeObserver:obs];
        CFRelease(obs->runLoop);
        [obs release];
    }
}

static void winshiftWake(void* ref) {
    WinshiftFocusObserver* obs = (WinshiftFocusObserver*)ref;
    CFRunLoopStop(obs->runLoop);
}

static void winshiftRunSlice(double seconds) {
    @autoreleasepool {
        CFRunLoopRunInMode(kCFRunLoopDefaultMode, seconds, false);
    }
}

static char* winshiftCopyTitle(AXUIElementRef window) {
    CFTypeRef title = NULL;
    if (AXUIElementCopyAttributeValue(window, kAXTitleAttribute, &title) != kAXErrorSuccess || title == NULL) {
        return NULL;
    }

    char* out = NULL;
    if (CFGetTypeID(title) == CFStringGetTypeID()) {
        const char* utf8 = [(NSString*)title UTF8String];
        if (utf8 != NULL) {
            out = strdup(utf8);
        }
    }
    CFRelease(title);
    return out;
}

static char* winshiftFrontmostTitle(void) {
    @autoreleasepool {
        NSRunningApplication* app = [[NSWorkspace sharedWorkspace] frontmostApplication];
        if (app == nil) {
            return NULL;
        }

        AXUIElementRef appElement = AXUIElementCreateApplication(app.processIdentifier);
        if (appElement == NULL) {
            return NULL;
        }

        CFTypeRef window = NULL;
        AXError err = AXUIElementCopyAttributeValue(appElement, kAXMainWindowAttribute, &window);
        if (err != kAXErrorSuccess || window == NULL) {
            err = AXUIElementCopyAttributeValue(appElement, kAXFocusedWindowAttribute, &window);
        }
        CFRelease(appElement);
        if (err != kAXErrorSuccess || window == NULL) {
            return NULL;
        }

        char* title = winshiftCopyTitle((AXUIElementRef)window);
        CFRelease(window);
        return title;
    }
}
*/
import "C"

import (
	"runtime/cgo"
	"time"
	"unsafe"

	"github.com/pkg/errors"
)

type appKit struct{}

func systemWorkspace() workspace {
	return appKit{}
}

type nsObserver struct {
	ref    unsafe.Pointer
	handle cgo.Handle
}

func (appKit) Subscribe(onChange func()) (subscription, error) {
	h := cgo.NewHandle(onChange)
	ref := C.winshiftSubscribe(C.uintptr_t(h))
	if ref == nil {
		h.Delete()
		return nil, errors.New("NSWorkspace notification center unavailable")
	}
	return &nsObserver{ref: ref, handle: h}, nil
}

func (o *nsObserver) Wake() {
	C.winshiftWake(o.ref)
}

func (o *nsObserver) Unsubscribe() {
	C.winshiftUnsubscribe(o.ref)
	o.handle.Delete()
}

func (appKit) RunSlice(d time.Duration) {
	C.winshiftRunSlice(C.double(d.Seconds()))
}

func (appKit) FrontmostTitle() (string, bool) {
	title := C.winshiftFrontmostTitle()
	if title == nil {
		return "", false
	}
	defer C.free(unsafe.Pointer(title))
	return C.GoString(title), true
}
