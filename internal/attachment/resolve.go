// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/docchat-tui/internal/model"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// Failure reports that one upload of a batch was rejected.
type Failure struct {
	FileName string

	// Detail is the human-readable reason given by the Attachment Store, or
	// the error text when the store gave none.
	Detail string
	Cause  error
}

func (e *Failure) Error() string {
	return fmt.Sprintf("upload %s: %s", e.FileName, e.Detail)
}

func (e *Failure) Unwrap() error {
	return e.Cause
}

// detailer is implemented by errors that carry a server-supplied detail.
type detailer interface {
	ErrorDetail() string
}

// ErrNoSource is returned for a pending attachment without a file behind it.
var ErrNoSource = errors.New("no file to upload")

// ErrNoID is returned when the store accepted a file but issued no id.
var ErrNoID = errors.New("attachment store returned no id")

func newFailure(name string, err error) *Failure {
	detail := err.Error()
	var d detailer
	if errors.As(err, &d) && d.ErrorDetail() != "" {
		detail = d.ErrorDetail()
	}
	return &Failure{FileName: name, Detail: detail, Cause: err}
}

// =============================================================================
// RESOLVER
// =============================================================================

// Uploader stores one file and returns its durable attachment record.
type Uploader interface {
	Upload(ctx context.Context, fileName string, r io.Reader, overwrite bool) (model.Attachment, error)
}

// Options tunes a Resolver.
type Options struct {
	// MaxConcurrent caps simultaneous uploads. Zero means no cap.
	MaxConcurrent int

	// OnUploaded is called after each successful upload, from the upload's goroutine.
	OnUploaded func(model.Attachment)
}

// Resolver turns staged attachments into durable ids.
type Resolver struct {
	up   Uploader
	opts Options
}

// NewResolver creates a resolver that uploads through up.
func NewResolver(up Uploader, opts Options) *Resolver {
	return &Resolver{up: up, opts: opts}
}

// Resolve uploads every pending item concurrently and returns the durable
// ids in staging order. Non-pending items pass through. The first failure
// cancels the remaining uploads and is returned as a *Failure; no ids are
// returned in that case.
func (r *Resolver) Resolve(ctx context.Context, items []Staged, overwrite bool) ([]model.ID, error) {
	ids := make([]model.ID, len(items))
	if !hasPending(items) {
		for i, item := range items {
			ids[i] = item.Attachment.ID
		}
		return ids, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if r.opts.MaxConcurrent > 0 {
		g.SetLimit(r.opts.MaxConcurrent)
	}

	for i, item := range items {
		if !item.Attachment.Pending {
			ids[i] = item.Attachment.ID
			continue
		}
		i, item := i, item
		g.Go(func() error {
			att, err := r.upload(gctx, item, overwrite)
			if err != nil {
				return newFailure(item.Attachment.FileName, err)
			}
			ids[i] = att.ID
			if r.opts.OnUploaded != nil {
				r.opts.OnUploaded(att)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Resolver) upload(ctx context.Context, item Staged, overwrite bool) (model.Attachment, error) {
	if item.Source == nil {
		return model.Attachment{}, ErrNoSource
	}

	f, err := item.Source.Open()
	if err != nil {
		return model.Attachment{}, err
	}
	defer f.Close()

	att, err := r.up.Upload(ctx, item.Attachment.FileName, f, overwrite)
	if err != nil {
		return model.Attachment{}, err
	}
	if att.ID.IsZero() {
		return model.Attachment{}, ErrNoID
	}
	return att, nil
}

// hasPending reports whether any item still needs an upload.
func hasPending(items []Staged) bool {
	for _, item := range items {
		if item.Attachment.Pending {
			return true
		}
	}
	return false
}
