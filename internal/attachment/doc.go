// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attachment stages user-selected files before send and resolves them
// to durable identifiers at send time.
//
// Staging never performs I/O. Resolve uploads every pending file of a batch
// concurrently and fails the whole batch if any single upload fails, so a
// turn never goes out with an incomplete attachment set.
//
// # Usage
//
//	stager := attachment.NewStager()
//	stager.Stage(attachment.FileSource("notes.pdf"))
//
//	resolver := attachment.NewResolver(client, attachment.Options{})
//	ids, err := resolver.Resolve(ctx, stager.Take(), overwrite)
//	var failure *attachment.Failure
//	if errors.As(err, &failure) {
//	    fmt.Println(failure.Detail)
//	}
package attachment
