//go:build !windows

// Package osutils provides OS-specific helpers used at startup.
package osutils

import (
	"runtime"
)

// IsAdmin is a stub for non-Windows platforms
func IsAdmin() bool {
	return false
}

// IsElevated is a stub for non-Windows platforms
func IsElevated() bool {
	return false
}

// InjectionWarning reports that this platform has no injection backend
func InjectionWarning() string {
	return "keyboard injection is not available on " + runtime.GOOS
}
