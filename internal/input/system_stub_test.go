//go:build !windows

package input

import (
	"errors"
	"testing"
)

func TestStubSystemUnsupported(t *testing.T) {
	b := NewSystemBridge(Options{})

	if err := b.KeyDown(0x41); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported from KeyDown, got %v", err)
	}
	if err := b.KeyUp(0x41); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported from KeyUp, got %v", err)
	}
	if _, err := b.ToggleNumLock(true); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported from ToggleNumLock, got %v", err)
	}
	// Range errors are still reported before the backend is touched.
	if err := b.KeyDown(300); !errors.Is(err, ErrKeyCodeRange) {
		t.Errorf("Expected ErrKeyCodeRange, got %v", err)
	}
}
