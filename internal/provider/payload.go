package provider

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"creatorpulse/internal/model"
	"creatorpulse/internal/util"
)

// Providers disagree on field naming (id vs id_str, text vs full_text,
// createdAt vs created_at, likes vs favorite_count, views vs viewCount)
// and on whether counts arrive as numbers or quoted strings. rawItem
// accepts both families; normalizeItem coalesces into the canonical shape.

// flexString decodes a JSON string or bare number into a string.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexCount decodes a JSON number, quoted number, or null into a
// non-negative count. Unparseable values become zero rather than failing
// the whole batch.
type flexCount int

func (f *flexCount) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 {
		*f = 0
		return nil
	}
	*f = flexCount(int(n))
	return nil
}

type rawAuthor struct {
	UserName   string `json:"userName"`
	Username   string `json:"username"`
	ScreenName string `json:"screen_name"`
}

func (a rawAuthor) handle() string {
	if a.UserName != "" {
		return a.UserName
	}
	if a.Username != "" {
		return a.Username
	}
	return a.ScreenName
}

type rawItem struct {
	ID       flexString `json:"id"`
	IDStr    string     `json:"id_str"`
	Text     string     `json:"text"`
	FullText string     `json:"full_text"`

	CreatedAtCamel string `json:"createdAt"`
	CreatedAtSnake string `json:"created_at"`
	Timestamp      int64  `json:"timestamp"`

	Likes         *flexCount `json:"likes"`
	FavoriteCount *flexCount `json:"favorite_count"`
	Retweets      *flexCount `json:"retweets"`
	RetweetCount  *flexCount `json:"retweet_count"`
	Replies       *flexCount `json:"replies"`
	ReplyCount    *flexCount `json:"reply_count"`
	Views         *flexCount `json:"views"`
	ViewCount     *flexCount `json:"viewCount"`

	Author rawAuthor `json:"author"`
	User   rawAuthor `json:"user"`
}

func (r rawItem) id() string {
	if r.IDStr != "" {
		return r.IDStr
	}
	return string(r.ID)
}

func (r rawItem) text() string {
	if r.FullText != "" {
		return r.FullText
	}
	return r.Text
}

// rubyTime is the legacy created_at layout ("Mon Jan 02 15:04:05 +0000 2006").
const rubyTime = "Mon Jan 02 15:04:05 -0700 2006"

var timeLayouts = []string{time.RFC3339, rubyTime, "2006-01-02 15:04:05"}

func (r rawItem) postedAt() (time.Time, bool) {
	for _, s := range []string{r.CreatedAtSnake, r.CreatedAtCamel} {
		if s == "" {
			continue
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	if r.Timestamp > 0 {
		return time.Unix(r.Timestamp, 0).UTC(), true
	}
	return time.Time{}, false
}

// count returns the first present variant, defaulting to zero.
func count(vals ...*flexCount) int {
	for _, v := range vals {
		if v != nil {
			return int(*v)
		}
	}
	return 0
}

// normalizeItem maps one upstream record into the canonical shape. The
// second return is false when the record carries no id or no parseable
// publication time; such records are dropped, not errored.
func normalizeItem(r rawItem, fallbackHandle string, fetchedAt time.Time) (model.Tweet, bool) {
	id := r.id()
	if id == "" {
		return model.Tweet{}, false
	}
	posted, ok := r.postedAt()
	if !ok {
		return model.Tweet{}, false
	}
	handle := r.Author.handle()
	if handle == "" {
		handle = r.User.handle()
	}
	if handle == "" {
		handle = fallbackHandle
	}
	return model.Tweet{
		ID:           id,
		AuthorHandle: NormalizeHandle(handle),
		Text:         util.CleanText(r.text()),
		PostedAt:     posted,
		LikeCount:    count(r.Likes, r.FavoriteCount),
		RetweetCount: count(r.Retweets, r.RetweetCount),
		ReplyCount:   count(r.Replies, r.ReplyCount),
		ViewCount:    count(r.Views, r.ViewCount),
		FetchedAt:    fetchedAt,
	}, true
}

func normalizeBatch(items []rawItem, fallbackHandle string, fetchedAt time.Time) []model.Tweet {
	out := make([]model.Tweet, 0, len(items))
	for _, r := range items {
		if t, ok := normalizeItem(r, fallbackHandle, fetchedAt); ok {
			out = append(out, t)
		}
	}
	return out
}
