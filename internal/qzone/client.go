// Package qzone talks to the local gateway that fronts the Qzone web API.
// The gateway owns cookies and protocol details; this client only knows the
// handful of operations the bot performs.
package qzone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client communicates with the gateway over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Client targeting the given gateway base URL.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway %s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// RenewCookies asks the gateway to refresh its Qzone session. Called before
// every batch of operations; a stale session fails all of them.
func (c *Client) RenewCookies(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/renew_cookies", nil, nil)
}

// ListRecent returns up to count recent feeds from the bot's timeline,
// newest first, with comments inlined.
func (c *Client) ListRecent(ctx context.Context, count int) ([]Feed, error) {
	var out struct {
		Feeds []Feed `json:"feeds"`
	}
	path := fmt.Sprintf("/feeds/recent?count=%d", count)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Feeds, nil
}

// Publish posts a new feed and returns its ID.
func (c *Client) Publish(ctx context.Context, content string) (string, error) {
	var out struct {
		FeedID string `json:"feed_id"`
	}
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, "/feeds", body, &out); err != nil {
		return "", err
	}
	return out.FeedID, nil
}

// Like likes a feed owned by ownerID.
func (c *Client) Like(ctx context.Context, feedID, ownerID string) error {
	body := map[string]string{"owner_id": ownerID}
	return c.do(ctx, http.MethodPost, "/feeds/"+feedID+"/like", body, nil)
}

// CommentFeed comments on a feed owned by ownerID.
func (c *Client) CommentFeed(ctx context.Context, feedID, ownerID, content string) error {
	body := map[string]string{"owner_id": ownerID, "content": content}
	return c.do(ctx, http.MethodPost, "/feeds/"+feedID+"/comments", body, nil)
}

// Reply replies to a specific comment under a feed.
func (c *Client) Reply(ctx context.Context, feedID, ownerID, ownerName, content, commentID string) error {
	body := map[string]string{
		"owner_id":   ownerID,
		"owner_name": ownerName,
		"content":    content,
		"comment_id": commentID,
	}
	return c.do(ctx, http.MethodPost, "/feeds/"+feedID+"/replies", body, nil)
}
