//go:build !windows

package input

// Stub implementation for non-Windows platforms

type stubSystem struct{}

// NewSystem returns a backend that rejects every call (stub)
func NewSystem() System {
	return stubSystem{}
}

// MapVirtualKey has no layout to consult (stub)
func (stubSystem) MapVirtualKey(vk uint8) uint16 {
	return 0
}

// SendKey injects nothing (stub)
func (stubSystem) SendKey(vk uint8, scan uint16, flags uint32) error {
	return ErrUnsupported
}

// KeyboardState has no state table to read (stub)
func (stubSystem) KeyboardState() ([256]byte, error) {
	return [256]byte{}, ErrUnsupported
}
