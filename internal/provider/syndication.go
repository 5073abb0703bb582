package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"creatorpulse/internal/model"
)

// Syndication wraps scraper-style JSON endpoints that still speak the
// legacy naming family (id_str, full_text, ruby-format created_at,
// favorite_count, string view counts). Field normalization is shared with
// any other adapter through rawItem.
type Syndication struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	maxAttempts int
	baseBackoff time.Duration
}

func NewSyndication(baseURL, apiKey string) *Syndication {
	if baseURL == "" {
		baseURL = "https://cdn.syndication.twimg.com"
	}
	return &Syndication{
		baseURL:     baseURL,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		maxAttempts: getEnvInt("SYNDICATION_MAX_ATTEMPTS", 4),
		baseBackoff: time.Duration(getEnvInt("SYNDICATION_BASE_BACKOFF_MS", 500)) * time.Millisecond,
	}
}

func (c *Syndication) Name() string { return "syndication" }

func (c *Syndication) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	return doWithRetry(ctx, c.httpClient, req, c.Name(), c.maxAttempts, c.baseBackoff)
}

func (c *Syndication) ValidateHandle(ctx context.Context, handle string) Validation {
	n, ok := CheckHandle(handle)
	if !ok {
		return Validation{Reason: fmt.Sprintf("invalid handle: %q may only contain letters, digits, and underscore", handle)}
	}
	u := fmt.Sprintf("%s/user?screen_name=%s", c.baseURL, url.QueryEscape(n))
	resp, err := c.get(ctx, u)
	if err != nil {
		return Validation{Reason: "provider unavailable: " + err.Error()}
	}
	defer resp.Body.Close()
	if err := statusError(resp.StatusCode); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Validation{Reason: "handle not found"}
		}
		return Validation{Reason: "provider unavailable: " + err.Error()}
	}
	var raw struct {
		IDStr      string     `json:"id_str"`
		ID         flexString `json:"id"`
		ScreenName string     `json:"screen_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Validation{Reason: "provider unavailable: " + err.Error()}
	}
	id := raw.IDStr
	if id == "" {
		id = string(raw.ID)
	}
	if id == "" {
		return Validation{Reason: "handle not found"}
	}
	return Validation{Valid: true, ProviderUserID: id}
}

func (c *Syndication) FetchItems(ctx context.Context, handle string, maxItems int, since time.Time) ([]model.Tweet, error) {
	n, ok := CheckHandle(handle)
	if !ok {
		return nil, fmt.Errorf("invalid handle %q", handle)
	}
	if maxItems <= 0 {
		return []model.Tweet{}, nil
	}
	u := fmt.Sprintf("%s/timeline?screen_name=%s&count=%d", c.baseURL, url.QueryEscape(n), clamp(maxItems, 1, 100))
	if !since.IsZero() {
		u += "&since=" + strconv.FormatInt(since.UTC().Unix(), 10)
	}
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := statusError(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("timeline %s: %w", n, err)
	}
	var raw struct {
		Tweets []rawItem `json:"tweets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	out := normalizeBatch(raw.Tweets, n, time.Now().UTC())
	// the since filter is advisory upstream; enforce it here
	if !since.IsZero() {
		kept := out[:0]
		for _, t := range out {
			if t.PostedAt.After(since) {
				kept = append(kept, t)
			}
		}
		out = kept
	}
	if len(out) > maxItems {
		out = out[:maxItems]
	}
	return out, nil
}
