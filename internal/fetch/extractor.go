// Package fetch resolves the page for a match and extracts its readable text.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const (
	defaultTimeout  = 30 * time.Second
	maxPageBytes    = 5 << 20
	maxItemComments = 20
)

// ErrEmptyText is returned when a page yields no readable text.
var ErrEmptyText = errors.New("no text extracted")

// Extractor returns the plain text of a web page.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

type pageClient struct {
	client    *http.Client
	userAgent string
}

func newPageClient(timeout time.Duration, userAgent string) pageClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return pageClient{client: &http.Client{Timeout: timeout}, userAgent: userAgent}
}

// get fetches pageURL and returns its body limited to maxPageBytes.
// The caller closes the body.
func (c pageClient) get(ctx context.Context, pageURL string) (io.ReadCloser, *url.URL, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body := struct {
		io.Reader
		io.Closer
	}{io.LimitReader(resp.Body, maxPageBytes), resp.Body}
	return body, u, nil
}

// ReadabilityExtractor extracts article text with a readability parser.
type ReadabilityExtractor struct {
	pageClient
}

// NewReadability creates a readability extractor.
func NewReadability(timeout time.Duration, userAgent string) *ReadabilityExtractor {
	return &ReadabilityExtractor{pageClient: newPageClient(timeout, userAgent)}
}

func (r *ReadabilityExtractor) Extract(ctx context.Context, pageURL string) (string, error) {
	body, u, err := r.get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	article, err := readability.FromReader(body, u)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

// ItemPageExtractor pulls the story text and top comments out of a Hacker
// News discussion page.
type ItemPageExtractor struct {
	pageClient
}

// NewItemPage creates an item page extractor.
func NewItemPage(timeout time.Duration, userAgent string) *ItemPageExtractor {
	return &ItemPageExtractor{pageClient: newPageClient(timeout, userAgent)}
}

func (e *ItemPageExtractor) Extract(ctx context.Context, pageURL string) (string, error) {
	body, _, err := e.get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return itemPageText(doc)
}

func itemPageText(doc *goquery.Document) (string, error) {
	var parts []string

	if top := strings.TrimSpace(doc.Find(".toptext").First().Text()); top != "" {
		parts = append(parts, top)
	}

	doc.Find(".commtext").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= maxItemComments {
			return false
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
		return true
	})

	if len(parts) == 0 {
		return "", ErrEmptyText
	}
	return strings.Join(parts, "\n\n"), nil
}
