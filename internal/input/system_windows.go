//go:build windows

package input

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows implementation of the keyboard boundary using SendInput

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procMapVirtualKey    = user32.NewProc("MapVirtualKeyW")
	procSendInput        = user32.NewProc("SendInput")
	procGetKeyboardState = user32.NewProc("GetKeyboardState")
)

const (
	INPUT_KEYBOARD  = 1
	MAPVK_VK_TO_VSC = 0
)

type KEYBDINPUT struct {
	WVk         uint16
	WScan       uint16
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

// KEYBD_INPUT is an INPUT structure carrying a keyboard event. The padding
// brings it up to the size of the C union, whose largest member is MOUSEINPUT.
type KEYBD_INPUT struct {
	Type    uint32
	Ki      KEYBDINPUT
	Padding [8]byte
}

type winSystem struct{}

// NewSystem returns the native Windows keyboard backend
func NewSystem() System {
	return winSystem{}
}

func (winSystem) MapVirtualKey(vk uint8) uint16 {
	ret, _, _ := procMapVirtualKey.Call(uintptr(vk), MAPVK_VK_TO_VSC)
	return uint16(ret)
}

func (winSystem) SendKey(vk uint8, scan uint16, flags uint32) error {
	in := KEYBD_INPUT{
		Type: INPUT_KEYBOARD,
		Ki: KEYBDINPUT{
			WVk:     uint16(vk),
			WScan:   scan,
			DwFlags: flags,
		},
	}

	// SendInput returns the number of events it inserted; 0 means the
	// event was blocked (UIPI, secure desktop) or rejected.
	ret, _, err := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	if ret != 1 {
		return fmt.Errorf("%w: SendInput vk=0x%02X flags=0x%X: %v", ErrInjectFailed, vk, flags, err)
	}
	return nil
}

func (winSystem) KeyboardState() ([256]byte, error) {
	var keys [256]byte
	ret, _, err := procGetKeyboardState.Call(uintptr(unsafe.Pointer(&keys[0])))
	if ret == 0 {
		return keys, fmt.Errorf("%w: GetKeyboardState: %v", ErrStateUnavailable, err)
	}
	return keys, nil
}
