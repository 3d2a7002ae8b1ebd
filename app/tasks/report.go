package tasks

import (
	"github.com/lysyi3m/rss-actions/app/database"
	"github.com/lysyi3m/rss-actions/app/feed"
)

// FeedOutcome records whether a feed produced usable entries this pass.
type FeedOutcome struct {
	Feed    database.Feed
	Entries int
	Err     error
}

// FilterOutcome records what happened to one filter. Blocked is set when
// the filter never ran because its feed failed.
type FilterOutcome struct {
	Filter   database.Filter
	Results  []feed.ActionResult
	Advanced bool
	Blocked  bool
	Err      error
}

// Report is the result of one update pass.
type Report struct {
	Feeds   []FeedOutcome
	Filters []FilterOutcome

	Successes int // filters that completed without error
	Failures  int // filters blocked by their feed or failed in an action
	Updates   int // filters whose watermark moved forward
}

func newReport() *Report {
	return &Report{
		Feeds:   []FeedOutcome{},
		Filters: []FilterOutcome{},
	}
}

func (r *Report) addFilter(outcome FilterOutcome) {
	r.Filters = append(r.Filters, outcome)
	if outcome.Err != nil {
		r.Failures++
		return
	}
	r.Successes++
	if outcome.Advanced {
		r.Updates++
	}
}
