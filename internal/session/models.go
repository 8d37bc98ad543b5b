// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"slices"
)

// ModelLister is the Model Registry.
type ModelLister interface {
	ModelNames(ctx context.Context) ([]string, error)
}

// LoadModels fetches the model list and resolves the selection against it.
// When the registry fails or returns nothing, fallback is used instead and
// the registry error is returned alongside the usable list, joined with any
// error saving the new selection.
func (m *Manager) LoadModels(ctx context.Context, lister ModelLister, fallback []string) ([]string, error) {
	names, err := lister.ModelNames(ctx)
	if err != nil || len(names) == 0 {
		names = slices.Clone(fallback)
	}
	_, saveErr := m.ResolveModel(names)
	return names, errors.Join(err, saveErr)
}
