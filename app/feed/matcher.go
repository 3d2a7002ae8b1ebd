package feed

import (
	"fmt"
	"strings"

	"github.com/lysyi3m/rss-actions/app/database"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ActionRunner executes a filter's script for one entry.
type ActionRunner interface {
	Run(filter database.Filter, entry Entry) (ActionResult, error)
}

var _ ActionRunner = (*Runner)(nil)

type Matcher struct {
	runner ActionRunner
}

func NewMatcher(runner ActionRunner) *Matcher {
	return &Matcher{runner: runner}
}

// Match is the outcome of running one filter over one feed's entries.
type Match struct {
	Filter   database.Filter // watermark moved forward when Advanced
	Advanced bool
	Results  []ActionResult // one per matched entry, in publish order
}

// Run invokes the filter's script for every entry that matches its keywords
// and is strictly newer than its watermark, oldest first. Entries must be
// sorted ascending by publish date. If any script fails the whole filter
// fails and the watermark is left alone.
func (m *Matcher) Run(filter database.Filter, entries []Entry) (*Match, error) {
	for i := 1; i < len(entries); i++ {
		if entries[i].PublishedAt.Before(entries[i-1].PublishedAt) {
			return nil, ErrUnsortedEntries
		}
	}

	match := &Match{Filter: filter}
	var newest *Entry

	for i := range entries {
		entry := entries[i]
		if !MatchesKeywords(filter.Keywords, entry.Title) {
			continue
		}
		if filter.LastUpdated != nil && !entry.PublishedAt.After(*filter.LastUpdated) {
			continue
		}

		result, err := m.runner.Run(filter, entry)
		if err != nil {
			return nil, fmt.Errorf("script failed for filter on feed %s, keywords %s, script %s: %w",
				filter.Alias, strings.Join(filter.Keywords, ", "), filter.ScriptPath, err)
		}
		match.Results = append(match.Results, result)
		newest = &entry
	}

	if newest != nil && (filter.LastUpdated == nil || newest.PublishedAt.After(*filter.LastUpdated)) {
		match.Filter.UpdateTime(newest.PublishedAt)
		match.Advanced = true
	}

	return match, nil
}

// MatchesKeywords reports whether every keyword occurs in title. Both sides
// are NFC-normalized and case-folded first, so matching is case-insensitive
// containment. No keywords matches everything.
func MatchesKeywords(keywords []string, title string) bool {
	folder := cases.Fold()
	folded := folder.String(norm.NFC.String(title))

	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if !strings.Contains(folded, folder.String(norm.NFC.String(keyword))) {
			return false
		}
	}
	return true
}
