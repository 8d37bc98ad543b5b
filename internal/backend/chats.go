// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jeranaias/docchat-tui/internal/model"
)

// Collection routes carry a trailing slash; the backend redirects without it.

// =============================================================================
// CHAT STORE
// =============================================================================

// ListChats returns chat summaries, most recently updated first.
func (c *Client) ListChats(ctx context.Context, skip, limit int) ([]model.ChatSummary, error) {
	query := url.Values{}
	query.Set("skip", strconv.Itoa(skip))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var chats []model.ChatSummary
	if err := c.doJSON(ctx, http.MethodGet, "/chats/", query, nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// GetChat returns a chat with its full message log.
func (c *Client) GetChat(ctx context.Context, id model.ID) (*model.Chat, error) {
	var chat model.Chat
	if err := c.doJSON(ctx, http.MethodGet, "/chats/"+url.PathEscape(id.String()), nil, nil, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// CreateChat creates a chat. An empty title lets the backend pick its default.
func (c *Client) CreateChat(ctx context.Context, title string) (*model.ChatSummary, error) {
	body := map[string]string{}
	if title != "" {
		body["title"] = title
	}

	var chat model.ChatSummary
	if err := c.doJSON(ctx, http.MethodPost, "/chats/", nil, body, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// DeleteChat deletes a chat and its messages.
func (c *Client) DeleteChat(ctx context.Context, id model.ID) error {
	return c.doJSON(ctx, http.MethodDelete, "/chats/"+url.PathEscape(id.String()), nil, nil, nil)
}

// UpdateChat applies a partial update and returns the updated summary.
func (c *Client) UpdateChat(ctx context.Context, id model.ID, update model.ChatUpdate) (*model.ChatSummary, error) {
	var chat model.ChatSummary
	if err := c.doJSON(ctx, http.MethodPatch, "/chats/"+url.PathEscape(id.String()), nil, update, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// RenameChat is UpdateChat for the title alone.
func (c *Client) RenameChat(ctx context.Context, id model.ID, title string) (*model.ChatSummary, error) {
	return c.UpdateChat(ctx, id, model.ChatUpdate{Title: &title})
}

// ListTags returns every tag known to the backend.
func (c *Client) ListTags(ctx context.Context) ([]model.Tag, error) {
	var tags []model.Tag
	if err := c.doJSON(ctx, http.MethodGet, "/tags/", nil, nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// =============================================================================
// MODEL REGISTRY
// =============================================================================

// ListModels returns the available generation models in registry order.
func (c *Client) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	var models []model.ModelInfo
	if err := c.doJSON(ctx, http.MethodGet, "/models/", nil, nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// ModelNames returns just the model identifiers, in order.
func (c *Client) ModelNames(ctx context.Context) ([]string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names, nil
}

// =============================================================================
// CONTEXT SEARCH
// =============================================================================

type searchRequest struct {
	ChatID  model.ID   `json:"chat_id"`
	Content string     `json:"content"`
	Role    model.Role `json:"role"`
}

// SearchContext returns document passages relevant to text within a chat.
func (c *Client) SearchContext(ctx context.Context, chatID model.ID, text string) ([]model.Passage, error) {
	req := searchRequest{ChatID: chatID, Content: text, Role: model.RoleUser}

	var passages []model.Passage
	if err := c.doJSON(ctx, http.MethodPost, "/chats/search_context", nil, req, &passages); err != nil {
		return nil, err
	}
	return passages, nil
}
