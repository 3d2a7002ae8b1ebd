package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single feed fetch.
const DefaultTimeout = 30 * time.Second

// maxFeedSize caps how much of a response body is read.
const maxFeedSize = 16 << 20

type Downloader struct {
	httpClient *http.Client
	parser     *Parser
	userAgent  string
	timeout    time.Duration
	maxSize    int64
}

func NewDownloader(httpClient *http.Client, parser *Parser, userAgent string) *Downloader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Downloader{
		httpClient: httpClient,
		parser:     parser,
		userAgent:  userAgent,
		timeout:    DefaultTimeout,
		maxSize:    maxFeedSize,
	}
}

// Fetch returns the raw body of url. Anything but a 2xx response is a
// DownloadError.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DownloadError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxSize+1))
	if err != nil {
		return nil, &DownloadError{URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if int64(len(data)) > d.maxSize {
		return nil, &DownloadError{URL: url, Err: fmt.Errorf("feed exceeds %d bytes", d.maxSize)}
	}

	return data, nil
}

// Download fetches url and parses the body.
func (d *Downloader) Download(ctx context.Context, url string) (*Document, error) {
	data, err := d.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return d.parser.Run(data)
}
