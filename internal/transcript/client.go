package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to the Python transcript sidecar service. The sidecar owns
// caption fetching and language selection; this client only carries the
// JSON contract.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type extractRequest struct {
	VideoID string `json:"video_id"`
}

type extractResponse struct {
	Success  bool      `json:"success"`
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
	Error    string    `json:"error,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	if timeout == 0 {
		timeout = 5 * time.Minute // caption fetch can be slow for long videos
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Extract returns the ordered transcript segments and detected language
// for a video. A video without captions is an error, not an empty list.
func (c *Client) Extract(ctx context.Context, videoID string) ([]Segment, string, error) {
	body, err := json.Marshal(extractRequest{VideoID: videoID})
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract-transcript", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create transcript request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("transcript extraction failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("transcript service returned status %d", resp.StatusCode)
	}

	var parsed extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, "", fmt.Errorf("failed to decode transcript response: %w", err)
	}

	if !parsed.Success {
		if parsed.Error == "" {
			parsed.Error = "failed to extract transcript"
		}
		return nil, "", fmt.Errorf("transcript extraction failed: %s", parsed.Error)
	}

	if len(parsed.Segments) == 0 {
		return nil, "", fmt.Errorf("no transcript available for video %s", videoID)
	}

	language := parsed.Language
	if language == "" {
		language = "en"
	}
	return parsed.Segments, language, nil
}

// IsHealthy checks the sidecar's health endpoint.
func (c *Client) IsHealthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("transcript service unhealthy: status %d", resp.StatusCode)
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, fmt.Errorf("failed to decode health response: %w", err)
	}
	return health.Status == "healthy", nil
}
