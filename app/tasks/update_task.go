package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-actions/app/database"
	"github.com/lysyi3m/rss-actions/app/feed"
)

var ErrAllDownloadsFailed = errors.New("all feed downloads failed, is the network down?")

// UpdateTask runs one update pass: download every feed, run each filter's
// actions on new matching entries and move the filter watermarks forward.
// The pass runs in a single transaction that is only committed at the end.
type UpdateTask struct {
	Task
	store   *database.Store
	fetcher Fetcher
	matcher FilterMatcher
}

func NewUpdateTask(store *database.Store, fetcher Fetcher, matcher FilterMatcher) *UpdateTask {
	return &UpdateTask{
		Task:    NewTask(TaskTypeUpdate),
		store:   store,
		fetcher: fetcher,
		matcher: matcher,
	}
}

type download struct {
	feed database.Feed
	doc  *feed.Document
	err  error
}

func (t *UpdateTask) Execute(ctx context.Context) (*Report, error) {
	t.Start()

	tx, err := t.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	report, err := t.run(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"id", t.ID,
		"duration", t.GetDuration(),
		"feeds", len(report.Feeds),
		"filters", len(report.Filters),
		"successes", report.Successes,
		"failures", report.Failures,
		"updates", report.Updates)

	return report, nil
}

func (t *UpdateTask) run(ctx context.Context, repo database.Repository) (*Report, error) {
	feeds, err := repo.ListFeeds(ctx)
	if err != nil {
		return nil, err
	}
	filters, err := repo.ListFilters(ctx)
	if err != nil {
		return nil, err
	}

	report := newReport()
	if len(filters) == 0 {
		slog.Debug("No filters to update")
		return report, nil
	}

	filtersByFeed, err := joinFeedsAndFilters(feeds, filters)
	if err != nil {
		return nil, err
	}

	downloads := t.downloadFeeds(ctx, feeds)
	if err := allFailed(downloads); err != nil {
		return nil, err
	}

	for _, d := range downloads {
		feedFilters := filtersByFeed[d.feed.Alias]

		entries, err := feedEntries(d)
		if err != nil {
			err = fmt.Errorf("feed %s: %w", d.feed.Alias, err)
			slog.Warn("Feed failed, skipping its filters", "feed", d.feed.Alias, "filters", len(feedFilters), "error", err)

			report.Feeds = append(report.Feeds, FeedOutcome{Feed: d.feed, Err: err})
			for _, filter := range feedFilters {
				report.addFilter(FilterOutcome{Filter: filter, Blocked: true, Err: err})
			}
			continue
		}

		report.Feeds = append(report.Feeds, FeedOutcome{Feed: d.feed, Entries: len(entries)})
		slog.Debug("Feed downloaded", "feed", d.feed.Alias, "entries", len(entries), "filters", len(feedFilters))

		for _, filter := range feedFilters {
			outcome, err := t.processFilter(ctx, repo, filter, entries)
			if err != nil {
				return nil, err
			}
			report.addFilter(outcome)
		}
	}

	return report, nil
}

// processFilter returns an error only for invariant violations that must
// abort the pass. Anything else is recorded on the outcome.
func (t *UpdateTask) processFilter(ctx context.Context, repo database.Repository, filter database.Filter, entries []feed.Entry) (FilterOutcome, error) {
	match, err := t.matcher.Run(filter, entries)
	if err != nil {
		slog.Warn("Filter failed", "feed", filter.Alias, "script", filter.ScriptPath, "error", err)
		return FilterOutcome{Filter: filter, Err: err}, nil
	}

	if !match.Advanced {
		return FilterOutcome{Filter: match.Filter, Results: match.Results}, nil
	}

	if err := repo.UpdateWatermark(ctx, match.Filter); err != nil {
		if errors.Is(err, database.ErrNoSuchFilter) || errors.Is(err, database.ErrCorruptState) {
			return FilterOutcome{}, err
		}
		slog.Error("Failed to persist filter watermark", "feed", filter.Alias, "script", filter.ScriptPath, "error", err)
		return FilterOutcome{
			Filter:  filter,
			Results: match.Results,
			Err:     fmt.Errorf("failed to persist watermark: %w", err),
		}, nil
	}

	return FilterOutcome{Filter: match.Filter, Results: match.Results, Advanced: true}, nil
}

func (t *UpdateTask) downloadFeeds(ctx context.Context, feeds []database.Feed) []download {
	downloads := make([]download, 0, len(feeds))
	for _, f := range feeds {
		doc, err := t.fetcher.Download(ctx, f.URL)
		downloads = append(downloads, download{feed: f, doc: doc, err: err})
	}
	return downloads
}

func feedEntries(d download) ([]feed.Entry, error) {
	if d.err != nil {
		return nil, d.err
	}
	return feed.Validate(d.doc)
}

// allFailed returns ErrAllDownloadsFailed joined with every download error
// when no feed could be downloaded.
func allFailed(downloads []download) error {
	errs := make([]error, 0, len(downloads))
	for _, d := range downloads {
		if d.err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("feed %s: %w", d.feed.Alias, d.err))
	}
	return fmt.Errorf("%w\n%w", ErrAllDownloadsFailed, errors.Join(errs...))
}

// joinFeedsAndFilters groups filters by feed alias. Every feed gets an entry,
// even without filters.
func joinFeedsAndFilters(feeds []database.Feed, filters []database.Filter) (map[string][]database.Filter, error) {
	byFeed := make(map[string][]database.Filter, len(feeds))
	for _, f := range feeds {
		byFeed[f.Alias] = nil
	}

	for _, filter := range filters {
		feedFilters, ok := byFeed[filter.Alias]
		if !ok {
			return nil, fmt.Errorf("%w: filter references missing feed %s", database.ErrCorruptState, filter.Alias)
		}
		byFeed[filter.Alias] = append(feedFilters, filter)
	}

	return byFeed, nil
}
