package mastodon

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

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// Timeline fetches one page of the given timeline. Statuses are returned
// newest-first, at most cursor.Limit of them.
func (c *Client) Timeline(ctx context.Context, tl Timeline, cursor Cursor) ([]*Status, error) {
	path, query := tl.Endpoint(cursor)

	req, err := c.newRequest(ctx, http.MethodGet, path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("timeline request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("timeline request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var statuses []*Status
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return nil, fmt.Errorf("decode timeline response: %w", err)
	}
	return statuses, nil
}

type marker struct {
	LastReadID string `json:"last_read_id"`
}

type markersResponse struct {
	Home *marker `json:"home"`
}

// Marker returns the persisted last-read status id for the home timeline, or
// "" when no marker has been saved yet.
func (c *Client) Marker(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/markers?timeline[]=home", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("marker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("marker request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var markers markersResponse
	if err := json.NewDecoder(resp.Body).Decode(&markers); err != nil {
		return "", fmt.Errorf("decode marker response: %w", err)
	}
	if markers.Home == nil {
		return "", nil
	}
	return markers.Home.LastReadID, nil
}

// SaveMarker persists the last-read status id for the home timeline.
func (c *Client) SaveMarker(ctx context.Context, lastReadID string) error {
	payload, err := json.Marshal(map[string]marker{
		"home": {LastReadID: lastReadID},
	})
	if err != nil {
		return fmt.Errorf("encode marker payload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/markers", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("save marker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("save marker failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	fullURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
