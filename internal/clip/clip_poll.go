//go:build linux || windows

package clip

// changeDetector returns nil: these platforms are polled by reading the
// image data and comparing it to the previous read.
func changeDetector() func() bool { return nil }
