// Package config provides configuration management for the keyboard bridge.
package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/xyproto/env/v2"
)

// Config represents the application configuration
type Config struct {
	// API contains the local bridge server settings
	API APIConfig `json:"api"`

	// Input contains keyboard bridge settings
	Input InputConfig `json:"input"`

	// Hotkeys contains global hotkeys handled in tray mode
	Hotkeys HotkeyConfig `json:"hotkeys"`

	// Log contains logging settings
	Log LogConfig `json:"log"`
}

// APIConfig contains the HTTP/WebSocket server settings
type APIConfig struct {
	// Enabled starts the API server alongside the tray
	Enabled bool `json:"enabled"`

	// ListenAddr is the interface to bind (default: 127.0.0.1)
	ListenAddr string `json:"listen_addr"`

	// Port is the port for the API server (default: 18081)
	Port int `json:"port"`

	// Token is an optional bearer token required on every request
	Token string `json:"token,omitempty"`
}

// InputConfig contains keyboard bridge settings
type InputConfig struct {
	// LegacyTruncate narrows out-of-range key codes to their low byte
	// instead of rejecting them
	LegacyTruncate bool `json:"legacy_truncate"`
}

// HotkeyConfig contains global hotkeys (e.g. "Ctrl+Alt+N"); empty disables
type HotkeyConfig struct {
	// NumLockOn forces NUMLOCK on
	NumLockOn string `json:"numlock_on,omitempty"`

	// NumLockOff forces NUMLOCK off
	NumLockOff string `json:"numlock_off,omitempty"`
}

// LogConfig contains logging settings
type LogConfig struct {
	// Debug enables [DEBUG] log lines
	Debug bool `json:"debug"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1",
			Port:       18081,
		},
	}
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a configuration manager for the default config path
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(configPath), nil
}

// NewManagerAt creates a configuration manager for an explicit config file
func NewManagerAt(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
		config:     DefaultConfig(),
	}
}

// Path returns the configuration file path
func (m *Manager) Path() string {
	return m.configPath
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "sendkeys")
	case "windows":
		appData := env.Str("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "sendkeys")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "sendkeys")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load reads the configuration from disk and applies environment overrides
func (m *Manager) Load() error {
	m.mu.Lock()
	data, err := os.ReadFile(m.configPath)
	if err != nil && !os.IsNotExist(err) {
		m.mu.Unlock()
		return err
	}
	if err == nil {
		if err := json.Unmarshal(data, m.config); err != nil {
			m.mu.Unlock()
			return err
		}
	}

	applyEnv(m.config)
	onChanged := m.onChanged
	m.mu.Unlock()

	if onChanged != nil {
		onChanged()
	}
	return nil
}

// applyEnv overrides file settings with SENDKEYS_* environment variables
func applyEnv(cfg *Config) {
	// env caches the environment on first use; refresh it so every Load
	// sees the current process environment
	env.Load()

	cfg.API.ListenAddr = env.Str("SENDKEYS_LISTEN_ADDR", cfg.API.ListenAddr)
	cfg.API.Port = env.Int("SENDKEYS_PORT", cfg.API.Port)
	cfg.API.Token = env.Str("SENDKEYS_TOKEN", cfg.API.Token)
	if env.Has("SENDKEYS_LEGACY_TRUNCATE") {
		cfg.Input.LegacyTruncate = env.Bool("SENDKEYS_LEGACY_TRUNCATE")
	}
	if env.Has("SENDKEYS_DEBUG") {
		cfg.Log.Debug = env.Bool("SENDKEYS_DEBUG")
	}
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}

	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set updates the configuration
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config
	onChanged := m.onChanged
	m.mu.Unlock()
	if onChanged != nil {
		onChanged()
	}
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
