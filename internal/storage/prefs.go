// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/util"
)

// =============================================================================
// PREFERENCES
// =============================================================================

// Prefs are the persisted client preferences.
type Prefs struct {
	Model      string             `json:"model,omitempty"`
	Flags      model.ContextFlags `json:"flags"`
	Overwrite  bool               `json:"overwrite"`
	LastChatID model.ID           `json:"last_chat_id,omitempty"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// DefaultPrefs returns preferences for a fresh installation.
func DefaultPrefs() Prefs {
	return Prefs{Flags: model.DefaultContextFlags()}
}

// =============================================================================
// PREFS STORE
// =============================================================================

// PrefsStore reads and writes Prefs from a single file.
type PrefsStore struct {
	// Path is the preferences file.
	// Default: ~/.docchat/prefs.json
	Path string

	mu sync.Mutex
}

// DefaultPrefsPath returns ~/.docchat/prefs.json.
func DefaultPrefsPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".docchat", "prefs.json"), nil
}

// NewPrefsStore creates a store at the default path.
func NewPrefsStore() (*PrefsStore, error) {
	path, err := DefaultPrefsPath()
	if err != nil {
		return nil, err
	}
	return &PrefsStore{Path: path}, nil
}

// NewPrefsStoreWithPath creates a store at path.
func NewPrefsStoreWithPath(path string) *PrefsStore {
	return &PrefsStore{Path: path}
}

// Load reads the preferences. A missing file yields DefaultPrefs and no error.
// Fields absent from an older file keep their defaults.
func (s *PrefsStore) Load() (Prefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs := DefaultPrefs()
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return prefs, nil
		}
		return prefs, err
	}

	if err := json.Unmarshal(data, &prefs); err != nil {
		return DefaultPrefs(), fmt.Errorf("failed to parse %s: %w", s.Path, err)
	}
	return prefs, nil
}

// Save writes the preferences atomically.
func (s *PrefsStore) Save(prefs Prefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(s.Path, data, 0o600)
}
