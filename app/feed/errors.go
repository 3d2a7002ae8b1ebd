package feed

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsortedEntries = errors.New("entries are not sorted by publish date")

// DownloadError is a network failure or a non-success response.
type DownloadError struct {
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to download %s: HTTP error: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("failed to download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// ParseError means the downloaded bytes are not a feed.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse feed: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// DataError lists the items of a feed that could not be turned into entries.
type DataError struct {
	Total    int
	Problems []string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%d of %d entries had data errors: %s",
		len(e.Problems), e.Total, strings.Join(e.Problems, "; "))
}

// ActionError is a script that could not be started or exited non-zero.
// Result holds whatever the script printed.
type ActionError struct {
	ScriptPath string
	Result     ActionResult
	Err        error
}

func (e *ActionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "script %s failed: %v", e.ScriptPath, e.Err)
	if e.Result.Stdout != "" {
		fmt.Fprintf(&b, "\nstdout:\n%s", strings.TrimRight(e.Result.Stdout, "\n"))
	}
	if e.Result.Stderr != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", strings.TrimRight(e.Result.Stderr, "\n"))
	}
	return b.String()
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
