package input

import (
	"fmt"
	"log"
)

// Options tunes the bridge
type Options struct {
	// LegacyTruncate keeps the low 8 bits of out-of-range key codes
	// instead of rejecting them.
	LegacyTruncate bool

	// Debug enables per-event logging
	Debug bool
}

// Bridge translates key operations into OS keyboard events.
// It holds no keyboard state of its own and adds no locking.
type Bridge struct {
	sys  System
	opts Options
}

// NewBridge creates a bridge over the given OS backend
func NewBridge(sys System, opts Options) *Bridge {
	return &Bridge{sys: sys, opts: opts}
}

// NewSystemBridge creates a bridge over the native backend of this platform
func NewSystemBridge(opts Options) *Bridge {
	return NewBridge(NewSystem(), opts)
}

// KeyDown generates a key pressed event for a virtual key code
func (b *Bridge) KeyDown(vk int) error {
	code, err := b.keyCode(vk)
	if err != nil {
		return err
	}
	return b.send(code, 0)
}

// KeyUp generates a key released event for a virtual key code
func (b *Bridge) KeyUp(vk int) error {
	code, err := b.keyCode(vk)
	if err != nil {
		return err
	}
	return b.send(code, FlagKeyUp)
}

// ToggleNumLock turns NUMLOCK on or off and reports whether it was on
// before the call. The prior state is returned even if injection fails.
func (b *Bridge) ToggleNumLock(on bool) (bool, error) {
	keys, err := b.sys.KeyboardState()
	if err != nil {
		return false, err
	}

	wasOn := keys[VKNumLock]&0x1 == 1
	if wasOn == on {
		if b.opts.Debug {
			log.Printf("[DEBUG] NumLock already %s, nothing to do", onOff(on))
		}
		return wasOn, nil
	}

	if b.opts.Debug {
		log.Printf("[DEBUG] NumLock %s -> %s", onOff(wasOn), onOff(on))
	}

	if err := b.sys.SendKey(VKNumLock, ScanNumLock, FlagExtendedKey); err != nil {
		return wasOn, err
	}
	if err := b.sys.SendKey(VKNumLock, ScanNumLock, FlagExtendedKey|FlagKeyUp); err != nil {
		return wasOn, err
	}
	return wasOn, nil
}

func (b *Bridge) send(vk uint8, flags uint32) error {
	scan := b.sys.MapVirtualKey(vk)
	if b.opts.Debug {
		log.Printf("[DEBUG] Key event: vk=0x%02X scan=0x%02X flags=0x%X", vk, scan, flags)
	}
	return b.sys.SendKey(vk, scan, flags)
}

func (b *Bridge) keyCode(vk int) (uint8, error) {
	if vk >= 0 && vk <= 0xFF {
		return uint8(vk), nil
	}
	if b.opts.LegacyTruncate {
		return uint8(vk), nil
	}
	return 0, fmt.Errorf("%w: %d", ErrKeyCodeRange, vk)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
