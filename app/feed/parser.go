package feed

import (
	"bytes"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses RSS, Atom or JSON feed bytes. Items keep the feed order and
// their raw date text; validation happens later.
func (p *Parser) Run(data []byte) (*Document, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	doc := &Document{
		Type:  parsed.FeedType,
		Title: parsed.Title,
		Items: make([]RawItem, 0, len(parsed.Items)),
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		doc.Items = append(doc.Items, RawItem{
			Title:     item.Title,
			Link:      item.Link,
			Published: item.Published,
		})
	}

	return doc, nil
}
