package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lysyi3m/rss-actions/app/database"
	"github.com/lysyi3m/rss-actions/app/feed"
)

type fakeFetcher struct {
	docs  map[string]*feed.Document
	calls []string
}

func (f *fakeFetcher) Download(ctx context.Context, url string) (*feed.Document, error) {
	f.calls = append(f.calls, url)
	doc, ok := f.docs[url]
	if !ok {
		return nil, &feed.DownloadError{URL: url, StatusCode: 503}
	}
	return doc, nil
}

func setupStore(t *testing.T) *database.Store {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// loggingScript returns a script that appends each entry title to a log file,
// and the path of that log.
func loggingScript(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "calls.log")
	script := filepath.Join(dir, "action.sh")
	body := fmt.Sprintf("#!/bin/sh\necho \"$RSSACTIONS_ENTRY_TITLE\" >> %q\necho \"ran $RSSACTIONS_ENTRY_TITLE\"\n", logPath)
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return script, logPath
}

func failingScript(t *testing.T) string {
	t.Helper()
	script := filepath.Join(t.TempDir(), "fail.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho nope >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return script
}

func readCalls(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func addFeed(t *testing.T, store *database.Store, alias, url string) {
	t.Helper()
	err := store.WithTx(context.Background(), func(tx *database.Tx) error {
		_, err := tx.AddFeed(context.Background(), database.Feed{Alias: alias, URL: url})
		return err
	})
	if err != nil {
		t.Fatalf("add feed: %v", err)
	}
}

func addFilter(t *testing.T, store *database.Store, alias, script string, keywords ...string) {
	t.Helper()
	err := store.WithTx(context.Background(), func(tx *database.Tx) error {
		_, err := tx.AddFilter(context.Background(), database.Filter{Alias: alias, Keywords: keywords, ScriptPath: script})
		return err
	})
	if err != nil {
		t.Fatalf("add filter: %v", err)
	}
}

func storedFilters(t *testing.T, store *database.Store) map[string]database.Filter {
	t.Helper()
	byScript := map[string]database.Filter{}
	err := store.WithTx(context.Background(), func(tx *database.Tx) error {
		filters, err := tx.ListFilters(context.Background())
		for _, f := range filters {
			byScript[f.Alias+" "+strings.Join(f.Keywords, ",")] = f
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return byScript
}

func rssDoc(items ...feed.RawItem) *feed.Document {
	return &feed.Document{Type: "rss", Items: items}
}

func item(title string, day int) feed.RawItem {
	date := time.Date(2023, 7, day, 10, 0, 0, 0, time.UTC)
	return feed.RawItem{
		Title:     title,
		Link:      "https://example.com/" + strings.ReplaceAll(title, " ", "-"),
		Published: date.Format(time.RFC1123Z),
	}
}

func runUpdate(t *testing.T, store *database.Store, fetcher Fetcher) (*Report, error) {
	t.Helper()
	task := NewUpdateTask(store, fetcher, feed.NewMatcher(feed.NewRunner()))
	return task.Execute(context.Background())
}

func TestUpdate_NoFilters(t *testing.T) {
	store := setupStore(t)
	addFeed(t, store, "news", "https://example.com/news.rss")
	fetcher := &fakeFetcher{}

	report, err := runUpdate(t, store, fetcher)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if report.Successes != 0 || report.Failures != 0 || report.Updates != 0 {
		t.Errorf("Expected zero counters, got %+v", report)
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("Expected no downloads, got %v", fetcher.calls)
	}
}

func TestUpdate_TwoMatchingEntries(t *testing.T) {
	store := setupStore(t)
	script, logPath := loggingScript(t)
	addFeed(t, store, "news", "https://example.com/news.rss")
	addFilter(t, store, "news", script, "release")

	fetcher := &fakeFetcher{docs: map[string]*feed.Document{
		"https://example.com/news.rss": rssDoc(
			item("second release", 5),
			item("unrelated", 6),
			item("first release", 3),
		),
	}}

	report, err := runUpdate(t, store, fetcher)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if report.Updates != 1 || report.Successes != 1 || report.Failures != 0 {
		t.Errorf("Expected 1 update, 1 success, 0 failures, got %+v", report)
	}
	if diff := cmp.Diff([]string{"first release", "second release"}, readCalls(t, logPath)); diff != "" {
		t.Errorf("action calls mismatch (-want +got):\n%s", diff)
	}

	outcome := report.Filters[0]
	if len(outcome.Results) != 2 || outcome.Results[0].Stdout != "ran first release\n" {
		t.Errorf("Expected captured output, got %+v", outcome.Results)
	}

	stored := storedFilters(t, store)["news release"]
	want := time.Date(2023, 7, 5, 10, 0, 0, 0, time.UTC)
	if stored.LastUpdated == nil || !stored.LastUpdated.Equal(want) {
		t.Errorf("Expected watermark %v, got %v", want, stored.LastUpdated)
	}

	// Nothing new on the second pass.
	report, err = runUpdate(t, store, fetcher)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if report.Updates != 0 || report.Failures != 0 || report.Successes != 1 {
		t.Errorf("Expected 0 updates, 0 failures, got %+v", report)
	}
	if calls := readCalls(t, logPath); len(calls) != 2 {
		t.Errorf("Expected no new action calls, got %v", calls)
	}
}

func TestUpdate_WatermarkNeverMovesBack(t *testing.T) {
	store := setupStore(t)
	script, logPath := loggingScript(t)
	addFeed(t, store, "news", "https://example.com/news.rss")
	addFilter(t, store, "news", script, "go")

	fetcher := &fakeFetcher{docs: map[string]*feed.Document{
		"https://example.com/news.rss": rssDoc(item("go 1", 10)),
	}}
	if _, err := runUpdate(t, store, fetcher); err != nil {
		t.Fatal(err)
	}

	// The feed now only carries older entries.
	fetcher.docs["https://example.com/news.rss"] = rssDoc(item("go 0", 2), item("go 1", 10))
	report, err := runUpdate(t, store, fetcher)
	if err != nil {
		t.Fatal(err)
	}
	if report.Updates != 0 {
		t.Errorf("Expected no updates, got %d", report.Updates)
	}

	stored := storedFilters(t, store)["news go"]
	want := time.Date(2023, 7, 10, 10, 0, 0, 0, time.UTC)
	if !stored.LastUpdated.Equal(want) {
		t.Errorf("Expected watermark to stay at %v, got %v", want, stored.LastUpdated)
	}
	if calls := readCalls(t, logPath); len(calls) != 1 {
		t.Errorf("Expected 1 action call in total, got %v", calls)
	}
}

func TestUpdate_OneFeedFails(t *testing.T) {
	store := setupStore(t)
	script, logPath := loggingScript(t)
	addFeed(t, store, "broken", "https://broken.example.com/feed.rss")
	addFeed(t, store, "news", "https://example.com/news.rss")
	addFilter(t, store, "broken", script, "anything")
	addFilter(t, store, "broken", script, "else")
	addFilter(t, store, "news", script, "release")

	fetcher := &fakeFetcher{docs: map[string]*feed.Document{
		"https://example.com/news.rss": rssDoc(item("release", 3)),
	}}

	report, err := runUpdate(t, store, fetcher)
	if err != nil {
		t.Fatalf("Expected the pass to succeed, got: %v", err)
	}

	if report.Failures != 2 || report.Successes != 1 || report.Updates != 1 {
		t.Errorf("Expected 2 failures, 1 success, 1 update, got %+v", report)
	}

	var downloadErr *feed.DownloadError
	if !errors.As(report.Feeds[0].Err, &downloadErr) {
		t.Errorf("Expected DownloadError on the broken feed, got %v", report.Feeds[0].Err)
	}
	for _, outcome := range report.Filters {
		if outcome.Filter.Alias == "broken" && !outcome.Blocked {
			t.Errorf("Expected broken feed filters to be blocked, got %+v", outcome)
		}
	}

	if diff := cmp.Diff([]string{"release"}, readCalls(t, logPath)); diff != "" {
		t.Errorf("action calls mismatch (-want +got):\n%s", diff)
	}

	stored := storedFilters(t, store)
	if stored["broken anything"].LastUpdated != nil {
		t.Error("Expected blocked filter watermark to stay unset")
	}
	if stored["news release"].LastUpdated == nil {
		t.Error("Expected news filter to advance")
	}
}

func TestUpdate_AllDownloadsFailed(t *testing.T) {
	store := setupStore(t)
	script, logPath := loggingScript(t)
	addFeed(t, store, "a", "https://a.example.com/feed.rss")
	addFeed(t, store, "b", "https://b.example.com/feed.rss")
	addFilter(t, store, "a", script, "x")

	report, err := runUpdate(t, store, &fakeFetcher{})
	if !errors.Is(err, ErrAllDownloadsFailed) {
		t.Fatalf("Expected ErrAllDownloadsFailed, got: %v", err)
	}
	if report != nil {
		t.Errorf("Expected no report, got %+v", report)
	}

	var downloadErr *feed.DownloadError
	if !errors.As(err, &downloadErr) {
		t.Errorf("Expected the individual download errors to be kept, got: %v", err)
	}
	if calls := readCalls(t, logPath); calls != nil {
		t.Errorf("Expected no action calls, got %v", calls)
	}
}

func TestUpdate_InvalidEntryRejectsFeed(t *testing.T) {
	store := setupStore(t)
	script, logPath := loggingScript(t)
	addFeed(t, store, "news", "https://example.com/news.rss")
	addFilter(t, store, "news", script, "release")
	addFilter(t, store, "news", script, "other")

	bad := item("release without date", 4)
	bad.Published = ""
	fetcher := &fakeFetcher{docs: map[string]*feed.Document{
		"https://example.com/news.rss": rssDoc(item("release 1", 2), item("release 2", 3), bad),
	}}

	report, err := runUpdate(t, store, fetcher)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if report.Failures != 2 || report.Successes != 0 || report.Updates != 0 {
		t.Errorf("Expected 2 failures, got %+v", report)
	}

	var dataErr *feed.DataError
	if !errors.As(report.Feeds[0].Err, &dataErr) {
		t.Errorf("Expected DataError, got %v", report.Feeds[0].Err)
	}
	if calls := readCalls(t, logPath); calls != nil {
		t.Errorf("Expected no action calls, got %v", calls)
	}
}

func TestUpdate_ActionFailureIsolated(t *testing.T) {
	store := setupStore(t)
	script, logPath := loggingScript(t)
	addFeed(t, store, "news", "https://example.com/news.rss")
	addFilter(t, store, "news", failingScript(t), "release")
	addFilter(t, store, "news", script, "release")

	fetcher := &fakeFetcher{docs: map[string]*feed.Document{
		"https://example.com/news.rss": rssDoc(item("release", 3)),
	}}

	report, err := runUpdate(t, store, fetcher)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if report.Failures != 1 || report.Successes != 1 || report.Updates != 1 {
		t.Errorf("Expected 1 failure, 1 success, 1 update, got %+v", report)
	}

	var actionErr *feed.ActionError
	failed := 0
	for _, outcome := range report.Filters {
		if outcome.Err == nil {
			continue
		}
		failed++
		if !errors.As(outcome.Err, &actionErr) {
			t.Errorf("Expected ActionError, got %v", outcome.Err)
		}
		if outcome.Blocked {
			t.Error("Action failure must not be reported as blocked")
		}
	}
	if failed != 1 {
		t.Errorf("Expected 1 failed outcome, got %d", failed)
	}
	if calls := readCalls(t, logPath); len(calls) != 1 {
		t.Errorf("Expected the working script to run once, got %v", calls)
	}

	// Only the working filter has a watermark.
	advanced := 0
	err = store.WithTx(context.Background(), func(tx *database.Tx) error {
		filters, err := tx.ListFilters(context.Background())
		for _, f := range filters {
			if f.LastUpdated != nil {
				advanced++
				if f.ScriptPath != script {
					t.Errorf("Unexpected advanced filter %+v", f)
				}
			}
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if advanced != 1 {
		t.Errorf("Expected 1 advanced filter, got %d", advanced)
	}
}

func TestJoinFeedsAndFilters(t *testing.T) {
	feeds := []database.Feed{{Alias: "a"}, {Alias: "b"}}
	filters := []database.Filter{{Alias: "b", ScriptPath: "1"}, {Alias: "a", ScriptPath: "2"}, {Alias: "b", ScriptPath: "3"}}

	byFeed, err := joinFeedsAndFilters(feeds, filters)
	if err != nil {
		t.Fatal(err)
	}
	if len(byFeed["a"]) != 1 || len(byFeed["b"]) != 2 || byFeed["b"][1].ScriptPath != "3" {
		t.Errorf("Unexpected grouping %+v", byFeed)
	}

	_, err = joinFeedsAndFilters(feeds, []database.Filter{{Alias: "missing"}})
	if !errors.Is(err, database.ErrCorruptState) {
		t.Errorf("Expected ErrCorruptState, got %v", err)
	}
}

// failingWatermarks refuses to store the watermark of filters carrying keyword.
type failingWatermarks struct {
	*database.Tx
	keyword string
	err     error
}

func (r *failingWatermarks) UpdateWatermark(ctx context.Context, filter database.Filter) error {
	if slices.Contains(filter.Keywords, r.keyword) {
		return r.err
	}
	return r.Tx.UpdateWatermark(ctx, filter)
}

// runWithRepository runs a pass like Execute does, committing only when the
// pass succeeds.
func runWithRepository(t *testing.T, store *database.Store, fetcher Fetcher, keyword string, watermarkErr error) (*Report, error) {
	t.Helper()
	ctx := context.Background()
	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()

	task := NewUpdateTask(store, fetcher, feed.NewMatcher(feed.NewRunner()))
	report, err := task.run(ctx, &failingWatermarks{Tx: tx, keyword: keyword, err: watermarkErr})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	return report, nil
}

func TestUpdate_WatermarkPersistenceFailureIsolated(t *testing.T) {
	store := setupStore(t)
	script, _ := loggingScript(t)
	addFeed(t, store, "news", "https://example.com/news.rss")
	addFilter(t, store, "news", script, "go")
	addFilter(t, store, "news", script, "release")

	fetcher := &fakeFetcher{docs: map[string]*feed.Document{
		"https://example.com/news.rss": rssDoc(item("Go release", 3)),
	}}

	persistErr := &database.PersistenceError{Op: "update filter watermark", Err: errors.New("disk I/O error")}
	report, err := runWithRepository(t, store, fetcher, "go", persistErr)
	if err != nil {
		t.Fatalf("Expected the pass to succeed, got: %v", err)
	}

	if report.Successes != 1 || report.Failures != 1 || report.Updates != 1 {
		t.Errorf("Expected 1 success, 1 failure, 1 update, got %d, %d, %d", report.Successes, report.Failures, report.Updates)
	}

	var persistenceErr *database.PersistenceError
	for _, outcome := range report.Filters {
		if slices.Contains(outcome.Filter.Keywords, "go") && !errors.As(outcome.Err, &persistenceErr) {
			t.Errorf("Expected PersistenceError on the failing filter, got: %v", outcome.Err)
		}
	}

	stored := storedFilters(t, store)
	if stored["news go"].LastUpdated != nil {
		t.Errorf("Expected failing filter to keep no watermark, got %v", stored["news go"].LastUpdated)
	}
	want := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)
	if got := stored["news release"].LastUpdated; got == nil || !got.Equal(want) {
		t.Errorf("Expected sibling watermark %v, got %v", want, got)
	}
}

func TestUpdate_CorruptStateAbortsPass(t *testing.T) {
	store := setupStore(t)
	script, _ := loggingScript(t)
	addFeed(t, store, "news", "https://example.com/news.rss")
	addFilter(t, store, "news", script, "go")
	addFilter(t, store, "news", script, "release")

	fetcher := &fakeFetcher{docs: map[string]*feed.Document{
		"https://example.com/news.rss": rssDoc(item("Go release", 3)),
	}}

	for _, invariantErr := range []error{database.ErrCorruptState, database.ErrNoSuchFilter} {
		_, err := runWithRepository(t, store, fetcher, "go", fmt.Errorf("%w: test", invariantErr))
		if !errors.Is(err, invariantErr) {
			t.Errorf("Expected %v, got: %v", invariantErr, err)
		}

		for key, filter := range storedFilters(t, store) {
			if filter.LastUpdated != nil {
				t.Errorf("Expected %s to keep no watermark, got %v", key, filter.LastUpdated)
			}
		}
	}
}
