// Package input provides synthetic keyboard injection on top of the host OS input API.
package input

import (
	"errors"
)

// Virtual key and scan codes the bridge needs to know about
const (
	VKNumLock   = 0x90
	ScanNumLock = 0x45
)

// Flags accepted by System.SendKey (same values as KEYEVENTF_*)
const (
	FlagExtendedKey uint32 = 0x0001
	FlagKeyUp       uint32 = 0x0002
)

var (
	// ErrKeyCodeRange is returned for virtual key codes outside [0, 255]
	ErrKeyCodeRange = errors.New("virtual key code out of range")

	// ErrInjectFailed is returned when the OS refused a synthetic event
	ErrInjectFailed = errors.New("keyboard event injection failed")

	// ErrStateUnavailable is returned when the keyboard state table cannot be read
	ErrStateUnavailable = errors.New("keyboard state unavailable")

	// ErrUnsupported is returned on platforms without a keyboard injection backend
	ErrUnsupported = errors.New("keyboard injection not supported on this platform")
)

// System is the boundary to the operating system's keyboard facilities
type System interface {
	// MapVirtualKey resolves a virtual key code to a scan code using the default layout
	MapVirtualKey(vk uint8) uint16

	// SendKey injects one synthetic keyboard event
	SendKey(vk uint8, scan uint16, flags uint32) error

	// KeyboardState returns a snapshot of the OS keyboard state table
	KeyboardState() ([256]byte, error)
}

// Controller defines the operations exposed to callers of the bridge
type Controller interface {
	KeyDown(vk int) error
	KeyUp(vk int) error
	ToggleNumLock(on bool) (bool, error)
}
