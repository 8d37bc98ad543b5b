// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/storage"
)

// ErrUnknownFlag is returned by ToggleFlag for an unrecognized flag name.
var ErrUnknownFlag = errors.New("unknown context flag")

// Store persists preferences.
type Store interface {
	Load() (storage.Prefs, error)
	Save(storage.Prefs) error
}

// Settings is a point-in-time copy of the session configuration.
type Settings struct {
	ChatID    model.ID
	Model     string
	Flags     model.ContextFlags
	Overwrite bool
}

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager holds the session configuration. Every change is written through
// to the Store.
//
// The Manager is safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	store Store
	prefs storage.Prefs

	// available is the last model list passed to ResolveModel.
	available []string
}

// NewManager loads preferences from store. A nil store keeps everything in
// memory. A load error is returned together with a usable Manager holding
// defaults.
func NewManager(store Store) (*Manager, error) {
	m := &Manager{store: store, prefs: storage.DefaultPrefs()}
	if store == nil {
		return m, nil
	}

	prefs, err := store.Load()
	m.prefs = prefs
	if err != nil {
		return m, fmt.Errorf("load preferences: %w", err)
	}
	return m, nil
}

// Settings returns the current configuration.
func (m *Manager) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Settings{
		ChatID:    m.prefs.LastChatID,
		Model:     m.prefs.Model,
		Flags:     m.prefs.Flags,
		Overwrite: m.prefs.Overwrite,
	}
}

// ChatID returns the active chat.
func (m *Manager) ChatID() model.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs.LastChatID
}

// SetChatID switches the active chat.
func (m *Manager) SetChatID(id model.ID) error {
	return m.update(func(p *storage.Prefs) { p.LastChatID = id })
}

// Model returns the selected model.
func (m *Manager) Model() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs.Model
}

// SetModel selects a model. When a model list is known the name must be in it.
func (m *Manager) SetModel(name string) error {
	m.mu.Lock()
	known := m.available
	m.mu.Unlock()

	if len(known) > 0 && !slices.Contains(known, name) {
		return fmt.Errorf("model %q is not available", name)
	}
	return m.update(func(p *storage.Prefs) { p.Model = name })
}

// Models returns the model list last seen by ResolveModel.
func (m *Manager) Models() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.available)
}

// ResolveModel records the available models and returns the selection:
// the stored model if it is still available, else the first entry. An empty
// list leaves the selection unchanged. A failed save still switches the
// in-memory selection and returns the error.
func (m *Manager) ResolveModel(available []string) (string, error) {
	m.mu.Lock()
	m.available = slices.Clone(available)
	current := m.prefs.Model
	m.mu.Unlock()

	if len(available) == 0 || slices.Contains(available, current) {
		return current, nil
	}

	err := m.update(func(p *storage.Prefs) { p.Model = available[0] })
	return available[0], err
}

// Flags returns the context flags.
func (m *Manager) Flags() model.ContextFlags {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs.Flags
}

// SetFlags replaces the context flags.
func (m *Manager) SetFlags(flags model.ContextFlags) error {
	return m.update(func(p *storage.Prefs) { p.Flags = flags })
}

// ToggleFlag flips one flag by name (llm, docs, web) and returns the result.
func (m *Manager) ToggleFlag(name string) (model.ContextFlags, error) {
	m.mu.Lock()
	flags := m.prefs.Flags
	m.mu.Unlock()

	if !flags.Toggle(name) {
		return flags, fmt.Errorf("%w: %q", ErrUnknownFlag, name)
	}
	return flags, m.SetFlags(flags)
}

// Overwrite returns the upload overwrite toggle.
func (m *Manager) Overwrite() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs.Overwrite
}

// SetOverwrite sets the upload overwrite toggle.
func (m *Manager) SetOverwrite(on bool) error {
	return m.update(func(p *storage.Prefs) { p.Overwrite = on })
}

// update applies fn and writes the result through. The in-memory change is
// kept even when the write fails.
func (m *Manager) update(fn func(*storage.Prefs)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn(&m.prefs)
	if m.store == nil {
		return nil
	}
	if err := m.store.Save(m.prefs); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
