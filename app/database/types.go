package database

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

type Feed struct {
	ID    int64 // Database row id, zero until stored
	Alias string
	URL   string
}

type Filter struct {
	ID          int64  // Database row id, zero until stored
	Alias       string // Alias of the feed the filter is attached to
	Keywords    []string
	ScriptPath  string
	LastUpdated *time.Time // Publish date of the newest entry acted on, nil if never updated
}

// NewFeed validates user input for a feed. The alias must not be empty and
// the url must be an absolute http(s) url.
func NewFeed(alias, rawURL string) (Feed, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return Feed{}, fmt.Errorf("a feed's alias must not be empty: %s", rawURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Feed{}, fmt.Errorf("failed to parse feed url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Feed{}, fmt.Errorf("feed url must be an absolute http(s) url: %s", rawURL)
	}

	return Feed{Alias: alias, URL: u.String()}, nil
}

// NewFilter validates user input for a filter and canonicalizes its keywords.
// The script must be a regular file with at least one executable bit set.
func NewFilter(alias string, keywords []string, scriptPath string) (Filter, error) {
	info, err := os.Stat(scriptPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Filter{}, fmt.Errorf("%w: %s", ErrScriptNotFile, scriptPath)
		}
		return Filter{}, fmt.Errorf("failed to read file metadata: %w", err)
	}
	if !info.Mode().IsRegular() {
		return Filter{}, fmt.Errorf("%w: %s", ErrScriptNotFile, scriptPath)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return Filter{}, fmt.Errorf("%w: %s", ErrScriptNotExecutable, scriptPath)
	}

	canonical, err := CanonicalKeywords(keywords)
	if err != nil {
		return Filter{}, err
	}

	return Filter{
		Alias:      alias,
		Keywords:   canonical,
		ScriptPath: scriptPath,
	}, nil
}

// UpdateTime moves the watermark to t.
func (f *Filter) UpdateTime(t time.Time) {
	t = t.UTC()
	f.LastUpdated = &t
}

// timeLayout is fixed width so stored watermarks sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}
