// Package api is the HTTP client for the chat server's polling API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"pesan/internal/chat"
	"pesan/internal/constants"
)

// ServerError is a failure the server reported with success:false.
// Never retried automatically; shown to the user as-is.
type ServerError struct {
	Reason string
}

func (e *ServerError) Error() string {
	return e.Reason
}

// Client implements chat.Transport against the HTTP API.
type Client struct {
	baseURL string
	userID  int64
	httpc   *http.Client
}

// NewClient creates a client for the server at baseURL, authenticating
// requests as userID.
func NewClient(baseURL string, userID int64) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		httpc:   &http.Client{},
	}
}

type fetchResponse struct {
	Success  bool           `json:"success"`
	Messages []chat.Message `json:"messages"`
	Error    string         `json:"error,omitempty"`
}

type sendResponse struct {
	Success bool          `json:"success"`
	Message *chat.Message `json:"message,omitempty"`
	Error   string        `json:"error,omitempty"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// FetchMessages retrieves messages newer than after for the
// conversation with peerID. The nonce defeats intermediary caching.
func (c *Client) FetchMessages(ctx context.Context, peerID, after int64, nonce string) ([]chat.Message, error) {
	url := fmt.Sprintf("%s/get_messages/%d?last_message_id=%d&_=%s", c.baseURL, peerID, after, nonce)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set(constants.UserIDHeader, strconv.FormatInt(c.userID, 10))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch messages: status %d", resp.StatusCode)
	}

	var out fetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode fetch response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("fetch messages: %s", out.Error)
	}

	log.Debug().Int64("peer", peerID).Int64("after", after).Int("messages", len(out.Messages)).Msg("Fetched messages")
	return out.Messages, nil
}

// SendMessage posts text and/or one attachment as multipart form data
// and returns the created message.
func (c *Client) SendMessage(ctx context.Context, peerID int64, text string, attachment *chat.Attachment) (*chat.Message, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("receiver_id", strconv.FormatInt(peerID, 10)); err != nil {
		return nil, fmt.Errorf("build send request: %w", err)
	}
	if err := w.WriteField("content", text); err != nil {
		return nil, fmt.Errorf("build send request: %w", err)
	}
	if attachment != nil {
		fw, err := w.CreateFormFile("file", attachment.Filename)
		if err != nil {
			return nil, fmt.Errorf("build send request: %w", err)
		}
		if _, err := io.Copy(fw, bytes.NewReader(attachment.Data)); err != nil {
			return nil, fmt.Errorf("build send request: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send_message", &body)
	if err != nil {
		return nil, fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set(constants.UserIDHeader, strconv.FormatInt(c.userID, 10))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("send message: status %d", resp.StatusCode)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode send response: %w", err)
	}
	if !out.Success {
		return nil, &ServerError{Reason: out.Error}
	}
	if out.Message == nil {
		return nil, fmt.Errorf("send message: empty response")
	}

	log.Debug().Int64("peer", peerID).Int64("id", out.Message.ID).Msg("Sent message")
	return out.Message, nil
}

// DeleteMessage deletes a single message by id.
func (c *Client) DeleteMessage(ctx context.Context, id int64) error {
	url := fmt.Sprintf("%s/delete_message/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.Header.Set(constants.UserIDHeader, strconv.FormatInt(c.userID, 10))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("delete message: status %d", resp.StatusCode)
	}

	var out deleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode delete response: %w", err)
	}
	if !out.Success {
		return &ServerError{Reason: out.Error}
	}

	log.Debug().Int64("id", id).Msg("Deleted message")
	return nil
}
