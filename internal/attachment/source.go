// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attachment

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/text/unicode/norm"
)

// Source is a file the user selected. Open is called once, at upload time.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// FileSource is a file on local disk.
type FileSource string

// Name returns the base name in NFC form, matching how the backend stores it.
func (f FileSource) Name() string {
	return NormalizeName(filepath.Base(string(f)))
}

// Open opens the file for reading.
func (f FileSource) Open() (io.ReadCloser, error) {
	return os.Open(string(f))
}

// Size returns the file size, or 0 when it cannot be read.
func (f FileSource) Size() int64 {
	info, err := os.Stat(string(f))
	if err != nil {
		return 0
	}
	return info.Size()
}

// BytesSource is an in-memory file, used for piped input.
type BytesSource struct {
	FileName string
	Data     []byte
}

// Name returns the normalized file name.
func (b BytesSource) Name() string {
	return NormalizeName(b.FileName)
}

// Open returns a reader over the data.
func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}

// NormalizeName converts a file name to Unicode NFC. macOS file dialogs hand
// out decomposed names, which would otherwise miss overwrite collisions.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}
