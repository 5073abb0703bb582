package model

import "time"

// Creator is one tracked upstream account, scoped to the owning user.
type Creator struct {
	ID             string
	UserID         string
	Handle         string
	Active         bool
	Requested      int // items to request per run, operator-configured 1..100
	ProviderUserID string
	// LastFetchedAt is nil until the first successful fetch and is only
	// advanced on success, never on failure.
	LastFetchedAt *time.Time
	CreatedAt     time.Time
}

// Tweet is the canonical, provider-agnostic shape of one ingested post.
type Tweet struct {
	ID           string // provider item id, globally unique
	CreatorID    string
	AuthorHandle string
	Text         string
	PostedAt     time.Time
	LikeCount    int
	RetweetCount int
	ReplyCount   int
	ViewCount    int
	FetchedAt    time.Time
}

// Allocation is the per-creator outcome of one budget pass. It is computed
// fresh on every scheduling run and never persisted.
type Allocation struct {
	Creator   Creator
	Requested int
	Granted   int
	Scaled    bool
}

// CreatorError records one creator's failure during a run.
type CreatorError struct {
	Creator string `json:"creator"`
	Reason  string `json:"reason"`
}

// RunSummary is the reporting contract of a scheduling run. It feeds the
// operator job log and is not stored.
type RunSummary struct {
	TotalScraped int            `json:"totalScraped"`
	PerUser      map[string]int `json:"perUser"`
	Errors       []CreatorError `json:"errors"`
}

// Merge folds another summary into s.
func (s *RunSummary) Merge(o RunSummary) {
	s.TotalScraped += o.TotalScraped
	if s.PerUser == nil {
		s.PerUser = map[string]int{}
	}
	for k, v := range o.PerUser {
		s.PerUser[k] += v
	}
	s.Errors = append(s.Errors, o.Errors...)
}
