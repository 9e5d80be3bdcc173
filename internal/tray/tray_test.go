//go:build windows

package tray

import (
	"errors"
	"testing"
)

type fakeNumLock struct {
	on    bool
	err   error
	calls int
}

func (f *fakeNumLock) KeyDown(vk int) error { return nil }
func (f *fakeNumLock) KeyUp(vk int) error   { return nil }

func (f *fakeNumLock) ToggleNumLock(on bool) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	was := f.on
	f.on = on
	return was, nil
}

func TestNumLockItems(t *testing.T) {
	ctrl := &fakeNumLock{}
	tr := New("test")
	set := tr.AddNumLockItems(ctrl)
	onID, offID := 0, 1

	tr.items[onID].Callback()
	if !ctrl.on {
		t.Error("Expected NumLock on after clicking 'NumLock On'")
	}
	if !tr.IsItemChecked(onID) || tr.IsItemChecked(offID) {
		t.Error("Expected only 'NumLock On' to be checked")
	}

	tr.items[offID].Callback()
	if ctrl.on {
		t.Error("Expected NumLock off after clicking 'NumLock Off'")
	}
	if tr.IsItemChecked(onID) || !tr.IsItemChecked(offID) {
		t.Error("Expected only 'NumLock Off' to be checked")
	}

	set(true)
	if !ctrl.on || !tr.IsItemChecked(onID) {
		t.Error("Expected the returned setter to update state and check marks")
	}
}

func TestNumLockItemsKeepStateOnError(t *testing.T) {
	ctrl := &fakeNumLock{err: errors.New("blocked")}
	tr := New("test")
	tr.AddNumLockItems(ctrl)
	onID, offID := 0, 1

	tr.items[onID].Callback()
	if ctrl.calls != 1 {
		t.Errorf("Expected 1 toggle call, got %d", ctrl.calls)
	}
	if tr.IsItemChecked(onID) || tr.IsItemChecked(offID) {
		t.Error("Expected check marks to stay unset after a failed toggle")
	}
}

func TestSeparatorIgnoredByChecks(t *testing.T) {
	tr := New("test")
	tr.AddSeparator()
	tr.SetItemChecked(0, true)
	if tr.IsItemChecked(0) {
		t.Error("Expected separators to never be checked")
	}
}
