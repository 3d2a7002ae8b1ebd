package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AddFeed stores a new feed and returns it with its row id.
func (t *Tx) AddFeed(ctx context.Context, feed Feed) (Feed, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO feeds (url, alias)
		VALUES (?, ?)
	`, feed.URL, feed.Alias)
	if err != nil {
		if isUniqueViolation(err) {
			return Feed{}, fmt.Errorf("%w: %s", ErrDuplicateFeed, feed.Alias)
		}
		return Feed{}, persistenceError("insert feed", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Feed{}, persistenceError("read feed id", err)
	}
	feed.ID = id

	return feed, nil
}

// ListFeeds returns all feeds in insertion order.
func (t *Tx) ListFeeds(ctx context.Context) ([]Feed, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, alias, url
		FROM feeds
		ORDER BY id
	`)
	if err != nil {
		return nil, persistenceError("list feeds", err)
	}
	defer rows.Close()

	feeds := []Feed{}
	for rows.Next() {
		var feed Feed
		if err := rows.Scan(&feed.ID, &feed.Alias, &feed.URL); err != nil {
			return nil, persistenceError("scan feed row", err)
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, persistenceError("iterate feed rows", err)
	}

	return feeds, nil
}

// GetFeed returns the feed with the given alias, or nil if there is none.
func (t *Tx) GetFeed(ctx context.Context, alias string) (*Feed, error) {
	var feed Feed
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, alias, url
		FROM feeds
		WHERE alias = ?
	`, alias).Scan(&feed.ID, &feed.Alias, &feed.URL)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("get feed", err)
	}

	return &feed, nil
}

// DeleteFeed removes a feed. It is refused while any filter references it.
func (t *Tx) DeleteFeed(ctx context.Context, alias string) error {
	feed, err := t.GetFeed(ctx, alias)
	if err != nil {
		return err
	}
	if feed == nil {
		return fmt.Errorf("%w: `%s`", ErrNoSuchFeed, alias)
	}

	var count int
	err = t.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM filters WHERE feed_id = ?", feed.ID).Scan(&count)
	if err != nil {
		return persistenceError("count feed filters", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: `%s` has %d filter(s)", ErrFeedInUse, alias, count)
	}

	_, err = t.tx.ExecContext(ctx, "DELETE FROM feeds WHERE id = ?", feed.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: `%s`", ErrFeedInUse, alias)
		}
		return persistenceError("delete feed", err)
	}

	return nil
}

// GetFeedCount returns the total number of feeds
func (t *Tx) GetFeedCount(ctx context.Context) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, persistenceError("get feed count", err)
	}
	return count, nil
}
