// Package api is the HTTP client for the external messaging/content
// service. Reads are rate-limited and retried with backoff; writes are
// issued exactly once, because the optimistic mutation layer reverts
// instead of retrying.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/nearlyhq/nearly-go/internal/config"
	"github.com/nearlyhq/nearly-go/internal/metrics"
	"github.com/nearlyhq/nearly-go/internal/model"
)

// ErrMalformed marks a response the client could not interpret, such
// as a send echo without a server id. Malformed responses are allowed
// to surface to the caller.
var ErrMalformed = errors.New("malformed response")

// StatusError is a non-2xx response from the service.
type StatusError struct {
	Code     int
	Endpoint string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d", e.Endpoint, e.Code)
}

// Client talks to the messaging/content service.
type Client struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
}

// NewClient creates a client from config. The bearer token is read
// from the environment variable the config names.
func NewClient(cfg *config.API) *Client {
	token := ""
	if cfg.TokenEnv != "" {
		token = os.Getenv(cfg.TokenEnv)
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		bearerToken: token,
		httpClient:  &http.Client{Timeout: cfg.Timeout()},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff(),
	}
}

func (c *Client) auth(req *http.Request) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	req.Header.Set("Accept", "application/json")
}

// get issues a rate-limited GET with the configured retry budget.
// Transport errors and 5xx/429 responses are retried with backoff;
// other statuses fail immediately.
func (c *Client) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.IncAPIRetry(endpoint)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.baseBackoff * time.Duration(attempt-1)):
			}
		}

		body, retryable, err := c.getOnce(ctx, endpoint, path)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, lastErr
}

func (c *Client) getOnce(ctx context.Context, endpoint, path string) (body []byte, retryable bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, false, err
	}
	c.auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		statusErr := &StatusError{Code: resp.StatusCode, Endpoint: endpoint}
		return nil, resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests, statusErr
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	return body, false, nil
}

// post issues a single rate-limited POST. Never retried.
func (c *Client) post(ctx context.Context, endpoint, path string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	c.auth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &StatusError{Code: resp.StatusCode, Endpoint: endpoint}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// MessageDraft is the client-side payload for sending a message.
type MessageDraft struct {
	SenderID  string            `json:"senderId"`
	Content   string            `json:"content"`
	MediaURL  string            `json:"mediaUrl,omitempty"`
	Kind      model.MessageKind `json:"messageType"`
	ReplyToID string            `json:"replyToId,omitempty"`
}

// ListMessages fetches the authoritative message list for a
// conversation, tolerating partial and irregular record shapes.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	path := fmt.Sprintf("/conversations/%s/messages", url.PathEscape(conversationID))
	body, err := c.get(ctx, "list_messages", path)
	if err != nil {
		return nil, err
	}
	return decodeMessages(body, conversationID)
}

// SendMessage posts a message and returns the server echo. An echo
// without a server id is malformed: the caller cannot correlate
// without one.
func (c *Client) SendMessage(ctx context.Context, conversationID string, draft MessageDraft) (model.Message, error) {
	path := fmt.Sprintf("/conversations/%s/messages", url.PathEscape(conversationID))
	body, err := c.post(ctx, "send_message", path, draft)
	if err != nil {
		return model.Message{}, err
	}

	msg, err := decodeMessage(body, conversationID)
	if err != nil {
		return model.Message{}, err
	}
	if msg.ID == "" {
		return model.Message{}, fmt.Errorf("send echo has no id: %w", ErrMalformed)
	}
	return msg, nil
}

// React records an emoji reaction on a message. Best effort; callers
// may ignore the error.
func (c *Client) React(ctx context.Context, messageID, userID, emoji string) error {
	path := fmt.Sprintf("/messages/%s/react", url.PathEscape(messageID))
	_, err := c.post(ctx, "react", path, map[string]string{
		"userId": userID,
		"emoji":  emoji,
	})
	return err
}

// VotePoll records a vote on a poll message.
func (c *Client) VotePoll(ctx context.Context, messageID, userID, optionID string) error {
	path := fmt.Sprintf("/messages/%s/poll/vote", url.PathEscape(messageID))
	_, err := c.post(ctx, "vote_poll", path, map[string]string{
		"userId":   userID,
		"optionId": optionID,
	})
	return err
}

// MarkSeenDirect marks the direct-conversation messages from senderID
// to recipientID as seen.
func (c *Client) MarkSeenDirect(ctx context.Context, recipientID, senderID string) error {
	_, err := c.post(ctx, "mark_seen", "/messages/mark-seen", map[string]string{
		"recipientId": recipientID,
		"senderId":    senderID,
	})
	return err
}

// MarkSeenGroup marks a group conversation as seen by userID; the
// conversation is implicit in the route.
func (c *Client) MarkSeenGroup(ctx context.Context, conversationID, userID string) error {
	path := fmt.Sprintf("/conversations/%s/messages/mark-seen", url.PathEscape(conversationID))
	_, err := c.post(ctx, "mark_seen", path, map[string]string{
		"userId": userID,
	})
	return err
}
