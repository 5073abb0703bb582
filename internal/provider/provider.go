// Package provider adapts upstream social APIs to the canonical tweet shape.
package provider

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"creatorpulse/internal/model"
)

// Sentinel errors for upstream outcomes. Adapters wrap these with context.
var (
	ErrNotFound     = errors.New("handle not found")
	ErrUnauthorized = errors.New("provider rejected credentials")
)

// Validation is the decision returned by ValidateHandle. It is always a
// decision, never an error: handle validation sits on a synchronous
// user-facing path. Reason prefixes let callers tell local rejections
// ("invalid handle: ...") apart from upstream ones ("handle not found",
// "provider unavailable: ...").
type Validation struct {
	Valid          bool
	ProviderUserID string
	Reason         string
}

// Adapter is one upstream API family. Implementations are stateless per
// call and share no behavior beyond this contract.
type Adapter interface {
	// ValidateHandle checks a handle locally, then upstream. Fails closed.
	ValidateHandle(ctx context.Context, handle string) Validation
	// FetchItems returns up to maxItems of the creator's posts, newest
	// first, published after since when since is non-zero. An account with
	// nothing in range yields an empty slice and a nil error. Transport
	// and auth failures propagate as typed errors.
	FetchItems(ctx context.Context, handle string, maxItems int, since time.Time) ([]model.Tweet, error)
	// Name is a constant identity string, used for logs and metrics only.
	Name() string
}

// handles: letters, digits, underscore, at most 15 chars, optional
// leading "@" stripped before the check.
var handleRe = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// NormalizeHandle strips surrounding space and a single leading "@".
// Callers may pass either form; upstreams get the bare handle.
func NormalizeHandle(h string) string {
	return strings.TrimPrefix(strings.TrimSpace(h), "@")
}

// CheckHandle normalizes h and reports whether it is well-formed.
func CheckHandle(h string) (string, bool) {
	n := NormalizeHandle(h)
	return n, handleRe.MatchString(n)
}
