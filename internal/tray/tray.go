// Package tray provides system tray functionality using getlantern/systray.
package tray

import (
	"log"
	"sync"

	"sendkeys/internal/input"

	"github.com/getlantern/systray"
)

// MenuItem represents a menu item
type MenuItem struct {
	ID       int
	Title    string
	Callback func()
	item     *systray.MenuItem
}

// Tray manages the system tray icon and menu
type Tray struct {
	mu      sync.Mutex
	tooltip string
	items   []*MenuItem
	checked map[int]bool
	onExit  func()
	quitCh  chan struct{}
}

// New creates a new system tray
func New(tooltip string) *Tray {
	t := &Tray{
		tooltip: tooltip,
		checked: make(map[int]bool),
		quitCh:  make(chan struct{}),
	}
	t.onExit = func() {
		close(t.quitCh)
	}
	return t
}

// AddMenuItem adds a menu item to the tray
func (t *Tray) AddMenuItem(title string, callback func()) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := len(t.items)
	t.items = append(t.items, &MenuItem{
		ID:       id,
		Title:    title,
		Callback: callback,
	})
	return id
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, nil) // nil indicates separator
}

// SetItemChecked sets the checked state of a menu item. The state is kept
// until the menu exists if the tray is not running yet.
func (t *Tray) SetItemChecked(id int, checked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.items) || t.items[id] == nil {
		return
	}
	t.checked[id] = checked
	if item := t.items[id].item; item != nil {
		if checked {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

// IsItemChecked reports the last checked state set for a menu item
func (t *Tray) IsItemChecked(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checked[id]
}

// Run starts the tray event loop (blocks)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, t.onExit)
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	systray.SetTitle("SendKeys")
	systray.SetTooltip(t.tooltip)
	systray.SetIcon(getIcon())

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, menuItem := range t.items {
		if menuItem == nil {
			systray.AddSeparator()
			continue
		}

		menuItem.item = systray.AddMenuItem(menuItem.Title, "")
		if t.checked[menuItem.ID] {
			menuItem.item.Check()
		}
		if menuItem.Callback == nil {
			continue
		}

		// Handle clicks in goroutine
		go func(mi *MenuItem) {
			for {
				select {
				case <-mi.item.ClickedCh:
					mi.Callback()
				case <-t.quitCh:
					return
				}
			}
		}(menuItem)
	}
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// AddNumLockItems adds "NumLock On" and "NumLock Off" entries driving ctrl
// and returns the setter they use, so other triggers keep the check marks in
// sync. The check marks follow the state reached by the last successful call.
func (t *Tray) AddNumLockItems(ctrl input.Controller) func(on bool) {
	var onID, offID int
	set := func(on bool) {
		wasOn, err := ctrl.ToggleNumLock(on)
		if err != nil {
			log.Printf("Tray: NumLock toggle failed: %v", err)
			return
		}
		log.Printf("Tray: NumLock %v -> %v", wasOn, on)
		t.SetItemChecked(onID, on)
		t.SetItemChecked(offID, !on)
	}

	onID = t.AddMenuItem("NumLock On", func() { set(true) })
	offID = t.AddMenuItem("NumLock Off", func() { set(false) })
	return set
}

// getIcon returns a placeholder icon (valid 16x16 ICO)
func getIcon() []byte {
	icon := make([]byte, 1118)
	// ICO header: reserved, type 1 (icon), 1 image
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	// Directory entry: 16x16, 32bpp, 1096 bytes at offset 22
	copy(icon[6:22], []byte{
		0x10, 0x10, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		0x48, 0x04, 0x00, 0x00,
		0x16, 0x00, 0x00, 0x00,
	})
	// BITMAPINFOHEADER, height doubled for the AND mask
	copy(icon[22:62], []byte{
		0x28, 0x00, 0x00, 0x00,
		0x10, 0x00, 0x00, 0x00,
		0x20, 0x00, 0x00, 0x00,
		0x01, 0x00,
		0x20, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x04, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	})
	return icon
}
