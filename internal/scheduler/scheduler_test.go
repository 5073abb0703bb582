package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"creatorpulse/internal/config"
	"creatorpulse/internal/model"
	"creatorpulse/internal/provider"
	"creatorpulse/internal/store"
)

// stubAdapter fabricates maxItems posts per call and can be told to fail
// for specific handles.
type stubAdapter struct {
	fail   map[string]error
	calls  []string
	grants map[string]int
}

func newStubAdapter() *stubAdapter {
	return &stubAdapter{fail: map[string]error{}, grants: map[string]int{}}
}

func (s *stubAdapter) Name() string { return "stub" }

func (s *stubAdapter) ValidateHandle(ctx context.Context, handle string) provider.Validation {
	return provider.Validation{Valid: true, ProviderUserID: "id-" + handle}
}

func (s *stubAdapter) FetchItems(ctx context.Context, handle string, maxItems int, since time.Time) ([]model.Tweet, error) {
	s.calls = append(s.calls, handle)
	s.grants[handle] = maxItems
	if err := s.fail[handle]; err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := make([]model.Tweet, 0, maxItems)
	for i := 0; i < maxItems; i++ {
		out = append(out, model.Tweet{
			ID: fmt.Sprintf("%s-%d", handle, i), AuthorHandle: handle,
			Text: "post", PostedAt: now.Add(-time.Duration(i) * time.Minute), FetchedAt: now,
		})
	}
	return out, nil
}

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func addCreator(t *testing.T, db *store.DB, userID, handle string, requested int) {
	t.Helper()
	c := model.Creator{ID: userID + "-" + handle, UserID: userID, Handle: handle, Active: true, Requested: requested}
	if err := db.CreateCreator(context.Background(), c); err != nil {
		t.Fatal(err)
	}
}

func testConfig(budget int) config.IngestConfig {
	return config.IngestConfig{DailyBudget: budget, StalenessHours: 24, PaceMillis: 0}
}

func TestRunForUserIsolatesFailures(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	addCreator(t, db, "u1", "good1", 10)
	addCreator(t, db, "u1", "bad", 10)
	addCreator(t, db, "u1", "good2", 10)

	adapter := newStubAdapter()
	adapter.fail["bad"] = errors.New("upstream timeout")
	s := New(db, adapter, testConfig(100))

	sum, err := s.RunForUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(adapter.calls) != 3 {
		t.Fatalf("run aborted early, calls: %v", adapter.calls)
	}
	if sum.TotalScraped != 20 {
		t.Fatalf("stored %d, want 20 from the two healthy creators", sum.TotalScraped)
	}
	if len(sum.Errors) != 1 || sum.Errors[0].Creator != "bad" {
		t.Fatalf("unexpected error list: %+v", sum.Errors)
	}
	if sum.PerUser["u1"] != 20 {
		t.Fatalf("per-user count %d, want 20", sum.PerUser["u1"])
	}

	// success advances the timestamp, failure leaves it nil
	for handle, wantSet := range map[string]bool{"good1": true, "bad": false, "good2": true} {
		c, err := db.GetCreatorByHandle(ctx, "u1", handle)
		if err != nil {
			t.Fatal(err)
		}
		if (c.LastFetchedAt != nil) != wantSet {
			t.Fatalf("%s: last fetched set=%v, want %v", handle, c.LastFetchedAt != nil, wantSet)
		}
	}
}

func TestRunForUserScalesGrants(t *testing.T) {
	db := openTestDB(t)
	addCreator(t, db, "u1", "heavy", 40)
	addCreator(t, db, "u1", "light", 30)

	adapter := newStubAdapter()
	s := New(db, adapter, testConfig(50))
	sum, err := s.RunForUser(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if adapter.grants["heavy"] != 28 || adapter.grants["light"] != 21 {
		t.Fatalf("grants %v, want heavy=28 light=21", adapter.grants)
	}
	if sum.TotalScraped != 49 {
		t.Fatalf("stored %d, want 49", sum.TotalScraped)
	}
}

func TestRunForUserSkipsFreshCreators(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	addCreator(t, db, "u1", "fresh", 10)
	if err := db.TouchLastFetched(ctx, "u1-fresh", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	adapter := newStubAdapter()
	s := New(db, adapter, testConfig(100))
	sum, err := s.RunForUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(adapter.calls) != 0 || sum.TotalScraped != 0 {
		t.Fatalf("fresh creator fetched: calls=%v stored=%d", adapter.calls, sum.TotalScraped)
	}
}

func TestRefreshCreatorScaledAgainstActiveSet(t *testing.T) {
	db := openTestDB(t)
	addCreator(t, db, "u1", "heavy", 40)
	addCreator(t, db, "u1", "light", 30)

	adapter := newStubAdapter()
	s := New(db, adapter, testConfig(50))
	sum, err := s.RefreshCreator(context.Background(), "u1", "@light")
	if err != nil {
		t.Fatal(err)
	}
	if len(adapter.calls) != 1 || adapter.calls[0] != "light" {
		t.Fatalf("calls %v, want only light", adapter.calls)
	}
	// still floor(30*50/70), not the full request
	if adapter.grants["light"] != 21 {
		t.Fatalf("grant %d, want 21", adapter.grants["light"])
	}
	if sum.TotalScraped != 21 {
		t.Fatalf("stored %d, want 21", sum.TotalScraped)
	}
}

func TestRefreshCreatorUnknownHandle(t *testing.T) {
	db := openTestDB(t)
	addCreator(t, db, "u1", "known", 10)
	s := New(db, newStubAdapter(), testConfig(50))
	if _, err := s.RefreshCreator(context.Background(), "u1", "stranger"); err == nil {
		t.Fatal("expected error for unknown creator")
	}
}

func TestRunAllAggregatesUsers(t *testing.T) {
	db := openTestDB(t)
	addCreator(t, db, "u1", "a", 5)
	addCreator(t, db, "u2", "b", 7)

	adapter := newStubAdapter()
	s := New(db, adapter, testConfig(100))
	sum, err := s.RunAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalScraped != 12 {
		t.Fatalf("stored %d, want 12", sum.TotalScraped)
	}
	if sum.PerUser["u1"] != 5 || sum.PerUser["u2"] != 7 {
		t.Fatalf("per-user counts %v", sum.PerUser)
	}
}
