package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// AddFilter canonicalizes the filter's keywords and stores it. The feed
// alias must exist and the (feed, keywords, script) triple must be new.
func (t *Tx) AddFilter(ctx context.Context, filter Filter) (Filter, error) {
	encoded, err := EncodeKeywords(filter.Keywords)
	if err != nil {
		return Filter{}, err
	}

	feed, err := t.GetFeed(ctx, filter.Alias)
	if err != nil {
		return Filter{}, err
	}
	if feed == nil {
		return Filter{}, fmt.Errorf("%w: %s", ErrUnknownFeed, filter.Alias)
	}

	var lastUpdated sql.NullString
	if filter.LastUpdated != nil {
		lastUpdated = sql.NullString{String: formatTime(*filter.LastUpdated), Valid: true}
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO filters (feed_id, keywords, script_path, last_updated)
		VALUES (?, ?, ?, ?)
	`, feed.ID, encoded, filter.ScriptPath, lastUpdated)
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return Filter{}, fmt.Errorf("%w: %s", ErrUnknownFeed, filter.Alias)
		case isUniqueViolation(err):
			return Filter{}, ErrDuplicateFilter
		}
		return Filter{}, persistenceError("insert filter", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Filter{}, persistenceError("read filter id", err)
	}

	filter.ID = id
	filter.Keywords = DecodeKeywords(encoded)
	return filter, nil
}

// ListFilters returns filters with the most recently updated first. Filters
// that were never updated come last.
func (t *Tx) ListFilters(ctx context.Context) ([]Filter, error) {
	return t.queryFilters(ctx, `
		SELECT f.id, feeds.alias, f.keywords, f.script_path, f.last_updated
		FROM filters f
		JOIN feeds ON feeds.id = f.feed_id
		ORDER BY f.last_updated IS NULL, f.last_updated DESC, f.id
	`)
}

func (t *Tx) listFiltersForFeed(ctx context.Context, alias string) ([]Filter, error) {
	return t.queryFilters(ctx, `
		SELECT f.id, feeds.alias, f.keywords, f.script_path, f.last_updated
		FROM filters f
		JOIN feeds ON feeds.id = f.feed_id
		WHERE feeds.alias = ?
		ORDER BY f.id
	`, alias)
}

func (t *Tx) queryFilters(ctx context.Context, query string, args ...any) ([]Filter, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistenceError("list filters", err)
	}
	defer rows.Close()

	filters := []Filter{}
	for rows.Next() {
		var (
			filter      Filter
			encoded     string
			lastUpdated sql.NullString
		)
		if err := rows.Scan(&filter.ID, &filter.Alias, &encoded, &filter.ScriptPath, &lastUpdated); err != nil {
			return nil, persistenceError("scan filter row", err)
		}

		filter.Keywords = DecodeKeywords(encoded)
		if lastUpdated.Valid {
			ts, err := parseTime(lastUpdated.String)
			if err != nil {
				return nil, persistenceError("read filter watermark", err)
			}
			filter.LastUpdated = &ts
		}
		filters = append(filters, filter)
	}

	if err := rows.Err(); err != nil {
		return nil, persistenceError("iterate filter rows", err)
	}

	return filters, nil
}

// UpdateWatermark stores filter.LastUpdated on the row matching the filter's
// (alias, keywords, script) triple. The write happens in its own savepoint,
// which is released on success and rolled back on failure, leaving the
// enclosing transaction usable either way.
func (t *Tx) UpdateWatermark(ctx context.Context, filter Filter) (err error) {
	if filter.LastUpdated == nil {
		return fmt.Errorf("%w: watermark is unset", ErrWatermarkRegression)
	}

	encoded, err := EncodeKeywords(filter.Keywords)
	if err != nil {
		return err
	}

	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT update_watermark"); err != nil {
		return persistenceError("create savepoint", err)
	}
	defer func() {
		if err != nil {
			_, _ = t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT update_watermark")
		}
		if _, releaseErr := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT update_watermark"); releaseErr != nil && err == nil {
			err = persistenceError("release savepoint", releaseErr)
		}
	}()

	rows, err := t.tx.QueryContext(ctx, `
		SELECT f.id, f.last_updated
		FROM filters f
		JOIN feeds ON feeds.id = f.feed_id
		WHERE feeds.alias = ? AND f.keywords = ? AND f.script_path = ?
	`, filter.Alias, encoded, filter.ScriptPath)
	if err != nil {
		return persistenceError("find filter", err)
	}

	type match struct {
		id          int64
		lastUpdated sql.NullString
	}
	var matches []match
	for rows.Next() {
		var m match
		if err := rows.Scan(&m.id, &m.lastUpdated); err != nil {
			rows.Close()
			return persistenceError("scan filter row", err)
		}
		matches = append(matches, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return persistenceError("iterate filter rows", err)
	}

	description := describeFilter(filter)
	switch len(matches) {
	case 0:
		return fmt.Errorf("%w: %s", ErrNoSuchFilter, description)
	case 1:
	default:
		return fmt.Errorf("%w: %d filters match %s", ErrCorruptState, len(matches), description)
	}

	newValue := formatTime(*filter.LastUpdated)
	if old := matches[0].lastUpdated; old.Valid && old.String > newValue {
		return fmt.Errorf("%w: %s from %s to %s", ErrWatermarkRegression, description, old.String, newValue)
	}

	if _, err := t.tx.ExecContext(ctx, "UPDATE filters SET last_updated = ? WHERE id = ?", newValue, matches[0].id); err != nil {
		return persistenceError("update filter watermark", err)
	}

	return nil
}

// DeleteFilter deletes the one filter on the feed alias whose keywords
// include every given keyword. The given keywords need not be complete, only
// enough to single out one filter.
func (t *Tx) DeleteFilter(ctx context.Context, alias string, keywords []string) (Filter, error) {
	filters, err := t.listFiltersForFeed(ctx, alias)
	if err != nil {
		return Filter{}, err
	}

	var candidates []Filter
	for _, filter := range filters {
		if hasKeywords(filter.Keywords, keywords) {
			candidates = append(candidates, filter)
		}
	}

	joined := strings.Join(keywords, ",")
	switch len(candidates) {
	case 0:
		return Filter{}, fmt.Errorf("%w `%s` on the feed `%s`", ErrNoMatch, joined, alias)
	case 1:
	default:
		return Filter{}, fmt.Errorf("%w `%s` on the feed `%s`", ErrAmbiguousMatch, joined, alias)
	}

	if _, err := t.tx.ExecContext(ctx, "DELETE FROM filters WHERE id = ?", candidates[0].ID); err != nil {
		return Filter{}, persistenceError("delete filter", err)
	}

	return candidates[0], nil
}

func describeFilter(filter Filter) string {
	return fmt.Sprintf("feed `%s`, keywords `%s`, script `%s`",
		filter.Alias, strings.Join(filter.Keywords, ", "), filter.ScriptPath)
}
