package tasks

import (
	"context"

	"github.com/lysyi3m/rss-actions/app/database"
	"github.com/lysyi3m/rss-actions/app/feed"
)

// Fetcher downloads and parses one feed.
type Fetcher interface {
	Download(ctx context.Context, url string) (*feed.Document, error)
}

// FilterMatcher runs one filter's actions over a feed's sorted entries.
type FilterMatcher interface {
	Run(filter database.Filter, entries []feed.Entry) (*feed.Match, error)
}

var (
	_ Fetcher       = (*feed.Downloader)(nil)
	_ FilterMatcher = (*feed.Matcher)(nil)
)

// UpdateSchedulerInterface is what the status API needs from the scheduler.
//
//	scheduler := NewScheduler(store, downloader, matcher, time.Hour)
//	scheduler.Start()
//	defer scheduler.Stop()
//	report, err := scheduler.RunNow(ctx)
type UpdateSchedulerInterface interface {
	Start()
	Stop()
	RunNow(ctx context.Context) (*Report, error)
	Last() (RunResult, bool)
}
