package store

import (
	"context"
	"testing"
	"time"

	"creatorpulse/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustCreate(t *testing.T, db *DB, id, userID, handle string, requested int) model.Creator {
	t.Helper()
	c := model.Creator{ID: id, UserID: userID, Handle: handle, Active: true, Requested: requested}
	if err := db.CreateCreator(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestListStaleOrderingNullsFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	mustCreate(t, db, "c-never", "u1", "never", 10)
	mustCreate(t, db, "c-old", "u1", "old", 10)
	mustCreate(t, db, "c-fresh", "u1", "fresh", 10)
	if err := db.TouchLastFetched(ctx, "c-old", now.Add(-48*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := db.TouchLastFetched(ctx, "c-fresh", now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	stale, err := db.ListStale(ctx, "u1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 2 {
		t.Fatalf("expected 2 stale creators, got %d", len(stale))
	}
	if stale[0].ID != "c-never" || stale[1].ID != "c-old" {
		t.Fatalf("wrong staleness order: %s, %s", stale[0].ID, stale[1].ID)
	}
	if stale[0].LastFetchedAt != nil {
		t.Fatal("never-fetched creator should carry nil timestamp")
	}
}

func TestHandleUniquePerUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	mustCreate(t, db, "c1", "u1", "alice", 10)
	err := db.CreateCreator(ctx, model.Creator{ID: "c2", UserID: "u1", Handle: "alice", Active: true, Requested: 10})
	if err == nil {
		t.Fatal("duplicate handle for same user accepted")
	}
	// same handle under another user is fine
	if err := db.CreateCreator(ctx, model.Creator{ID: "c3", UserID: "u2", Handle: "alice", Active: true, Requested: 10}); err != nil {
		t.Fatal(err)
	}
}

func TestRequestedRange(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for _, bad := range []int{0, -1, 101} {
		err := db.CreateCreator(ctx, model.Creator{ID: "x", UserID: "u1", Handle: "h", Active: true, Requested: bad})
		if err == nil {
			t.Fatalf("requested=%d accepted", bad)
		}
	}
}

func TestDeactivateExcludesFromSelection(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	mustCreate(t, db, "c1", "u1", "alice", 10)
	if err := db.DeactivateCreator(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	stale, err := db.ListStale(ctx, "u1", time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 0 {
		t.Fatalf("deactivated creator selected: %+v", stale)
	}
	users, err := db.UserIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 0 {
		t.Fatalf("user with no active creators listed: %v", users)
	}
	// still present, just inactive
	got, err := db.GetCreator(ctx, "c1")
	if err != nil || got.Active {
		t.Fatalf("expected inactive creator, got %+v err=%v", got, err)
	}
}

func TestProviderUserIDBackfill(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	mustCreate(t, db, "c1", "u1", "alice", 10)
	if err := db.SetProviderUserID(ctx, "c1", "111"); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetCreatorByHandle(ctx, "u1", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.ProviderUserID != "111" {
		t.Fatalf("provider user id not backfilled: %+v", got)
	}
}
