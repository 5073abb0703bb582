package store

import (
	"context"
	"database/sql"
	"time"

	"creatorpulse/internal/model"
)

// UpsertTweets stores a fetched batch idempotently, keyed by provider
// tweet id. New ids are inserted with creator ownership; existing ids
// update text, metrics, and fetched_at only — posted_at and the owning
// creator are immutable after creation. Each row is a single conditional
// statement, so concurrent re-fetches of the same id converge to
// last-writer-wins without coordination.
func (d *DB) UpsertTweets(ctx context.Context, creatorID string, tweets []model.Tweet) (int, error) {
	stored := 0
	for _, t := range tweets {
		_, err := d.sql.ExecContext(ctx, `
		INSERT INTO tweets(tweet_id, creator_id, author_handle, text, posted_at, like_count, retweet_count, reply_count, view_count, fetched_at)
		VALUES(?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(tweet_id) DO UPDATE SET
		  text=excluded.text,
		  like_count=excluded.like_count,
		  retweet_count=excluded.retweet_count,
		  reply_count=excluded.reply_count,
		  view_count=excluded.view_count,
		  fetched_at=excluded.fetched_at`,
			t.ID, creatorID, t.AuthorHandle, t.Text, t.PostedAt.Unix(),
			t.LikeCount, t.RetweetCount, t.ReplyCount, t.ViewCount, t.FetchedAt.Unix())
		if err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

// GetTweet returns one stored tweet by provider id.
func (d *DB) GetTweet(ctx context.Context, id string) (model.Tweet, error) {
	row := d.sql.QueryRowContext(ctx, selectTweets+` WHERE tweet_id=?`, id)
	return scanTweet(row)
}

// CountTweets returns the number of stored tweets, optionally scoped to
// one creator (empty creatorID counts everything).
func (d *DB) CountTweets(ctx context.Context, creatorID string) (int, error) {
	var n int
	var err error
	if creatorID == "" {
		err = d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM tweets`).Scan(&n)
	} else {
		err = d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM tweets WHERE creator_id=?`, creatorID).Scan(&n)
	}
	return n, err
}

// SweepOlderThan deletes tweets published before cutoff, regardless of
// creator state or fetch recency, and reports the count removed. This is
// cost control, not correctness; it may run concurrently with ingestion.
func (d *DB) SweepOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM tweets WHERE posted_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// BalancedRecent assembles up to total tweets for downstream context,
// spread evenly across the user's active creators: each contributes at
// most ceil(total/creators) of its newest posts within the lookback
// window. The merge is a deterministic round-robin interleave by creator
// so one prolific creator cannot crowd out the rest and repeated reads
// are reproducible.
func (d *DB) BalancedRecent(ctx context.Context, userID string, total int, lookback time.Duration) ([]model.Tweet, error) {
	if total <= 0 {
		return []model.Tweet{}, nil
	}
	creators, err := d.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(creators) == 0 {
		return []model.Tweet{}, nil
	}
	perCreator := (total + len(creators) - 1) / len(creators)
	since := time.Now().UTC().Add(-lookback)
	batches := make([][]model.Tweet, 0, len(creators))
	for _, c := range creators {
		rows, err := d.sql.QueryContext(ctx,
			selectTweets+` WHERE creator_id=? AND posted_at >= ? ORDER BY posted_at DESC LIMIT ?`,
			c.ID, since.Unix(), perCreator)
		if err != nil {
			return nil, err
		}
		batch, err := collectTweets(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	out := make([]model.Tweet, 0, total)
	for i := 0; len(out) < total; i++ {
		advanced := false
		for _, b := range batches {
			if i < len(b) {
				out = append(out, b[i])
				advanced = true
				if len(out) == total {
					break
				}
			}
		}
		if !advanced {
			break
		}
	}
	return out, nil
}

const selectTweets = `SELECT tweet_id, creator_id, author_handle, text, posted_at, like_count, retweet_count, reply_count, view_count, fetched_at FROM tweets`

func collectTweets(rows *sql.Rows) ([]model.Tweet, error) {
	defer rows.Close()
	var out []model.Tweet
	for rows.Next() {
		t, err := scanTweet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTweet(row rowScanner) (model.Tweet, error) {
	var t model.Tweet
	var posted, fetched int64
	if err := row.Scan(&t.ID, &t.CreatorID, &t.AuthorHandle, &t.Text, &posted,
		&t.LikeCount, &t.RetweetCount, &t.ReplyCount, &t.ViewCount, &fetched); err != nil {
		return t, err
	}
	t.PostedAt = time.Unix(posted, 0).UTC()
	t.FetchedAt = time.Unix(fetched, 0).UTC()
	return t, nil
}
