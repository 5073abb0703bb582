// Package store persists creators and fetched tweets in SQLite.
package store

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database backing the ingestion pipeline.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;`); err != nil {
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS creators (
	  id TEXT PRIMARY KEY,
	  user_id TEXT NOT NULL,
	  handle TEXT NOT NULL,
	  active INTEGER NOT NULL DEFAULT 1,
	  requested INTEGER NOT NULL,
	  provider_user_id TEXT,
	  last_fetched_at INTEGER,
	  created_at INTEGER NOT NULL,
	  UNIQUE(user_id, handle)
	);
	CREATE INDEX IF NOT EXISTS idx_creators_user ON creators(user_id, active);
	CREATE TABLE IF NOT EXISTS tweets (
	  tweet_id TEXT PRIMARY KEY,
	  creator_id TEXT NOT NULL REFERENCES creators(id) ON DELETE CASCADE,
	  author_handle TEXT NOT NULL,
	  text TEXT NOT NULL,
	  posted_at INTEGER NOT NULL,
	  like_count INTEGER NOT NULL DEFAULT 0,
	  retweet_count INTEGER NOT NULL DEFAULT 0,
	  reply_count INTEGER NOT NULL DEFAULT 0,
	  view_count INTEGER NOT NULL DEFAULT 0,
	  fetched_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tweets_creator_posted ON tweets(creator_id, posted_at);
	CREATE INDEX IF NOT EXISTS idx_tweets_posted ON tweets(posted_at);
	`)
	return err
}
