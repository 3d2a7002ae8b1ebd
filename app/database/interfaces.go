package database

import "context"

var _ Repository = (*Tx)(nil)

// Repository is the set of feed and filter operations available inside one
// transaction.
type Repository interface {
	AddFeed(ctx context.Context, feed Feed) (Feed, error)
	ListFeeds(ctx context.Context) ([]Feed, error)
	GetFeed(ctx context.Context, alias string) (*Feed, error)
	GetFeedCount(ctx context.Context) (int, error)
	DeleteFeed(ctx context.Context, alias string) error

	AddFilter(ctx context.Context, filter Filter) (Filter, error)
	ListFilters(ctx context.Context) ([]Filter, error)
	UpdateWatermark(ctx context.Context, filter Filter) error
	DeleteFilter(ctx context.Context, alias string, keywords []string) (Filter, error)
}
