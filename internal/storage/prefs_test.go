// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jeranaias/docchat-tui/internal/model"
)

func TestPrefsStore_MissingFileGivesDefaults(t *testing.T) {
	store := NewPrefsStoreWithPath(filepath.Join(t.TempDir(), "prefs.json"))

	prefs, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if prefs.Flags != model.DefaultContextFlags() {
		t.Errorf("Flags = %+v, want defaults", prefs.Flags)
	}
	if prefs.Model != "" || prefs.Overwrite {
		t.Errorf("unexpected prefs %+v", prefs)
	}
}

func TestPrefsStore_SaveAndLoad(t *testing.T) {
	store := NewPrefsStoreWithPath(filepath.Join(t.TempDir(), "sub", "prefs.json"))

	want := Prefs{
		Model:      "mistral",
		Flags:      model.ContextFlags{UseWebSearch: true},
		Overwrite:  true,
		LastChatID: "12",
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Model != want.Model || got.Flags != want.Flags || got.Overwrite != want.Overwrite || got.LastChatID != want.LastChatID {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped on save")
	}
}

func TestPrefsStore_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	if err := os.WriteFile(path, []byte(`{"model":"llama3"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := NewPrefsStoreWithPath(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Model != "llama3" {
		t.Errorf("Model = %q", got.Model)
	}
	if got.Flags != model.DefaultContextFlags() {
		t.Errorf("Flags = %+v, want defaults", got.Flags)
	}
}

func TestPrefsStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := NewPrefsStoreWithPath(path).Load()
	if err == nil {
		t.Fatal("expected parse error")
	}
	if got.Flags != model.DefaultContextFlags() {
		t.Error("corrupt file should still return defaults")
	}
}
