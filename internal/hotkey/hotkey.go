// Package hotkey provides global system-wide hotkey monitoring.
package hotkey

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// Manager handles global hotkey registration and matching
type Manager struct {
	mu           sync.RWMutex
	hotkeys      []*registeredHotkey
	currentState map[string]bool // keys currently held down

	// Debounce suppresses repeated triggers of the same hotkey (auto-repeat)
	Debounce time.Duration
}

type registeredHotkey struct {
	parts     []string // e.g., ["CTRL", "ALT", "N"]
	original  string
	callback  func()
	lastFired time.Time
}

// NewManager creates a new hotkey manager
func NewManager() *Manager {
	return &Manager{
		currentState: make(map[string]bool),
		Debounce:     500 * time.Millisecond,
	}
}

// Register registers a hotkey string (e.g. "Ctrl+Alt+N") and a callback.
func (m *Manager) Register(hotkeyStr string, callback func()) (int, error) {
	if strings.TrimSpace(hotkeyStr) == "" {
		return 0, fmt.Errorf("empty hotkey")
	}

	parts := strings.Split(strings.ToUpper(hotkeyStr), "+")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
		if parts[i] == "" {
			return 0, fmt.Errorf("invalid hotkey %q", hotkeyStr)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		parts:    parts,
		original: hotkeyStr,
		callback: callback,
	})

	return len(m.hotkeys) - 1, nil
}

// Clear removes all registered hotkeys
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

// UpdateState updates the internal state of a key and checks for matches.
func (m *Manager) UpdateState(key string, isDown bool) {
	m.mu.Lock()
	key = strings.ToUpper(key)
	if isDown {
		m.currentState[key] = true
	} else {
		delete(m.currentState, key)
	}
	m.mu.Unlock()

	if isDown {
		m.checkMatches()
	}
}

func (m *Manager) checkMatches() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, hk := range m.hotkeys {
		match := true
		for _, part := range hk.parts {
			if !m.currentState[part] {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		if now.Sub(hk.lastFired) < m.Debounce {
			continue
		}
		hk.lastFired = now

		log.Printf("Hotkey triggered: %s", hk.original)
		go hk.callback()
	}
}

// Start initiates the platform-specific global hooks.
func (m *Manager) Start() error {
	return m.startPlatform()
}
