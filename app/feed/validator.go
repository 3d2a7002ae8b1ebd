package feed

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"
)

// Validate turns every item of doc into an Entry sorted ascending by publish
// date. A single invalid item rejects the whole feed with a DataError.
func Validate(doc *Document) ([]Entry, error) {
	entries := make([]Entry, 0, len(doc.Items))
	var problems []string

	for i, item := range doc.Items {
		entry, err := newEntry(doc.Type, item)
		if err != nil {
			problems = append(problems, fmt.Sprintf("entry %d: %v", i+1, err))
			continue
		}
		entries = append(entries, entry)
	}

	if len(problems) > 0 {
		return nil, &DataError{Total: len(doc.Items), Problems: problems}
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		return a.PublishedAt.Compare(b.PublishedAt)
	})

	return entries, nil
}

func newEntry(feedType string, item RawItem) (Entry, error) {
	if item.Title == "" {
		return Entry{}, fmt.Errorf("title is missing")
	}
	if item.Link == "" {
		return Entry{}, fmt.Errorf("link is missing")
	}
	if item.Published == "" {
		return Entry{}, fmt.Errorf("publish date is missing")
	}

	published, err := parseDate(feedType, item.Published)
	if err != nil {
		return Entry{}, fmt.Errorf("publish date %q did not parse: %w", item.Published, err)
	}

	return Entry{
		Title:       item.Title,
		Link:        item.Link,
		PublishedAt: published.UTC(),
	}, nil
}

// parseDate reads the date encoding each format mandates: RFC 5322 for RSS,
// RFC 3339 for Atom and JSON Feed.
func parseDate(feedType, value string) (time.Time, error) {
	switch feedType {
	case "rss":
		return mail.ParseDate(numericZone(value))
	default:
		return time.Parse(time.RFC3339, value)
	}
}

// obsoleteZones are the RFC 5322 obsolete zone names with fixed offsets.
// time.Parse would only honor them when they match the local zone.
var obsoleteZones = map[string]string{
	"UT":  "+0000",
	"GMT": "+0000",
	"EST": "-0500",
	"EDT": "-0400",
	"CST": "-0600",
	"CDT": "-0500",
	"MST": "-0700",
	"MDT": "-0600",
	"PST": "-0800",
	"PDT": "-0700",
}

// numericZone replaces a trailing obsolete zone name with its offset.
// Military single letter zones carry no reliable meaning and become -0000.
func numericZone(value string) string {
	value = strings.TrimSpace(value)
	i := strings.LastIndexByte(value, ' ')
	if i < 0 {
		return value
	}

	zone := strings.ToUpper(value[i+1:])
	if offset, ok := obsoleteZones[zone]; ok {
		return value[:i+1] + offset
	}
	if len(zone) == 1 && zone[0] >= 'A' && zone[0] <= 'Z' && zone != "J" {
		return value[:i+1] + "-0000"
	}
	return value
}
