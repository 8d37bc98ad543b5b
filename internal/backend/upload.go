// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jeranaias/docchat-tui/internal/model"
)

// =============================================================================
// ATTACHMENT STORE
// =============================================================================

// Upload stores one file and returns its attachment record. The body is
// streamed; the server ingests the document before responding, so the call
// is bounded by UploadTimeout rather than Timeout.
func (c *Client) Upload(ctx context.Context, fileName string, r io.Reader, overwrite bool) (model.Attachment, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.UploadTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(form, fileName, r, overwrite))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/upload/", nil), pr)
	if err != nil {
		pr.Close()
		return model.Attachment{}, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.Close()
		return model.Attachment{}, transportError(ctx, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("file", fileName).
		Bool("overwrite", overwrite).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("upload completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.Attachment{}, statusError(resp)
	}

	var att model.Attachment
	if err := json.NewDecoder(resp.Body).Decode(&att); err != nil {
		return model.Attachment{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode upload response", Cause: err}
	}
	att.Pending = false
	return att, nil
}

// writeUploadForm writes the "file" and "overwrite" parts.
func writeUploadForm(form *multipart.Writer, fileName string, r io.Reader, overwrite bool) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "file",
		"filename": fileName,
	}))
	header.Set("Content-Type", contentType(fileName))

	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	if err := form.WriteField("overwrite", strconv.FormatBool(overwrite)); err != nil {
		return err
	}
	return form.Close()
}

// contentType guesses a MIME type from the extension.
func contentType(fileName string) string {
	if ct := mime.TypeByExtension(filepath.Ext(fileName)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
