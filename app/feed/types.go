package feed

import (
	"time"
)

// Document is a parsed feed reduced to what the update pass reads.
type Document struct {
	Type  string // "rss", "atom" or "json"
	Title string
	Items []RawItem
}

// RawItem fields are empty when the source item lacks them. Published is
// the date text as written in the feed.
type RawItem struct {
	Title     string
	Link      string
	Published string
}

// Entry is a validated feed item.
type Entry struct {
	Title       string
	Link        string
	PublishedAt time.Time
}
