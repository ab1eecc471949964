//go:build darwin

package clip

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #import <Cocoa/Cocoa.h>
//
// NSInteger screen2scp_changeCount() {
//     return [[NSPasteboard generalPasteboard] changeCount];
// }
import "C"

// changeDetector compares the pasteboard changeCount, which is far cheaper
// than reading image data on every tick.
func changeDetector() func() bool {
	last := C.NSInteger(-1)
	return func() bool {
		cc := C.screen2scp_changeCount()
		if cc == last {
			return false
		}
		last = cc
		return true
	}
}
