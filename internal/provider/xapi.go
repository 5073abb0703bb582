package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"creatorpulse/internal/model"
)

// XAPI wraps the X API v2 family (bearer token, public_metrics naming).
type XAPI struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	maxAttempts int
	baseBackoff time.Duration
}

func NewXAPI(baseURL, bearerToken string) *XAPI {
	if baseURL == "" {
		baseURL = "https://api.twitter.com/2"
	}
	return &XAPI{
		baseURL:     baseURL,
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		maxAttempts: getEnvInt("XAPI_MAX_ATTEMPTS", 5),
		baseBackoff: time.Duration(getEnvInt("XAPI_BASE_BACKOFF_MS", 500)) * time.Millisecond,
	}
}

func (c *XAPI) Name() string { return "xapi" }

func (c *XAPI) auth(req *http.Request) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	req.Header.Set("Accept", "application/json")
}

// lookupUser resolves a bare handle to the provider-assigned user id.
func (c *XAPI) lookupUser(ctx context.Context, handle string) (string, error) {
	u := fmt.Sprintf("%s/users/by/username/%s", c.baseURL, url.PathEscape(handle))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	c.auth(req)
	resp, err := doWithRetry(ctx, c.httpClient, req, c.Name(), c.maxAttempts, c.baseBackoff)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := statusError(resp.StatusCode); err != nil {
		return "", fmt.Errorf("lookup %s: %w", handle, err)
	}
	var raw struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
		Errors []struct {
			Title string `json:"title"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", err
	}
	// the API reports missing users with 200 plus an errors array
	if raw.Data.ID == "" {
		return "", fmt.Errorf("lookup %s: %w", handle, ErrNotFound)
	}
	return raw.Data.ID, nil
}

func (c *XAPI) ValidateHandle(ctx context.Context, handle string) Validation {
	n, ok := CheckHandle(handle)
	if !ok {
		return Validation{Reason: fmt.Sprintf("invalid handle: %q may only contain letters, digits, and underscore", handle)}
	}
	id, err := c.lookupUser(ctx, n)
	switch {
	case errors.Is(err, ErrNotFound):
		return Validation{Reason: "handle not found"}
	case err != nil:
		return Validation{Reason: "provider unavailable: " + err.Error()}
	}
	return Validation{Valid: true, ProviderUserID: id}
}

func (c *XAPI) FetchItems(ctx context.Context, handle string, maxItems int, since time.Time) ([]model.Tweet, error) {
	n, ok := CheckHandle(handle)
	if !ok {
		return nil, fmt.Errorf("invalid handle %q", handle)
	}
	if maxItems <= 0 {
		return []model.Tweet{}, nil
	}
	id, err := c.lookupUser(ctx, n)
	if err != nil {
		return nil, err
	}
	// the API floor for max_results is 5; small grants are trimmed below
	u := fmt.Sprintf("%s/users/%s/tweets?max_results=%d&tweet.fields=created_at,public_metrics&exclude=retweets,replies",
		c.baseURL, url.PathEscape(id), clamp(maxItems, 5, 100))
	if !since.IsZero() {
		u += "&start_time=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.auth(req)
	resp, err := doWithRetry(ctx, c.httpClient, req, c.Name(), c.maxAttempts, c.baseBackoff)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := statusError(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("tweets %s: %w", n, err)
	}
	var raw struct {
		Data []struct {
			ID            string    `json:"id"`
			Text          string    `json:"text"`
			CreatedAt     time.Time `json:"created_at"`
			PublicMetrics struct {
				LikeCount       int `json:"like_count"`
				ReplyCount      int `json:"reply_count"`
				RetweetCount    int `json:"retweet_count"`
				ImpressionCount int `json:"impression_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := make([]model.Tweet, 0, len(raw.Data))
	for _, d := range raw.Data {
		out = append(out, model.Tweet{
			ID:           d.ID,
			AuthorHandle: n,
			Text:         d.Text,
			PostedAt:     d.CreatedAt.UTC(),
			LikeCount:    d.PublicMetrics.LikeCount,
			ReplyCount:   d.PublicMetrics.ReplyCount,
			RetweetCount: d.PublicMetrics.RetweetCount,
			ViewCount:    d.PublicMetrics.ImpressionCount,
			FetchedAt:    now,
		})
	}
	if len(out) > maxItems {
		out = out[:maxItems]
	}
	return out, nil
}
