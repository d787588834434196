// Package pagetitle fetches a page and extracts its title for history entries.
package pagetitle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
)

// ErrNotHTTP is returned for URLs the fetcher skips (about:, data:, file:).
var ErrNotHTTP = errors.New("pagetitle: not an http(s) url")

// Fetcher resolves page titles. Transient failures (connection errors,
// 429 and 5xx) are retried by the underlying retryablehttp client.
type Fetcher struct {
	client *resty.Client
}

// New returns a fetcher whose requests, retries included, give up after timeout.
func New(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 50 * time.Millisecond
	retryClient.RetryWaitMax = 500 * time.Millisecond
	retryClient.Logger = nil

	client := resty.NewWithClient(retryClient.StandardClient())
	client.
		SetTimeout(timeout).
		SetHeader("User-Agent", "hyprshell/1.0").
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	return &Fetcher{client: client}
}

// Title fetches rawURL and returns its document title.
func (f *Fetcher) Title(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrNotHTTP
	}
	resp, err := f.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(rawURL)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.StatusCode() < 200 || resp.StatusCode() >= 400 {
		return "", fmt.Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return ExtractTitle(doc), nil
}

// ExtractTitle prefers <title>, then og:title.
func ExtractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("head title").First().Text()); t != "" {
		return collapseSpace(t)
	}
	if t, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		return collapseSpace(strings.TrimSpace(t))
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
