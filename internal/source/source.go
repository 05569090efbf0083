package source

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const itemURLPrefix = "https://news.ycombinator.com/item?id="

// Match is one story returned by a search provider.
type Match struct {
	ID          string    // index-unique story ID, always present
	Title       string    // story title
	ExternalURL string    // linked article; empty for text posts
	Author      string    // submitter username
	CreatedAt   time.Time // creation timestamp reported by the index
}

// PostURL returns the canonical discussion page for the story.
func (m Match) PostURL() string {
	return itemURLPrefix + m.ID
}

// HasExternalURL reports whether the story links to an outside article.
func (m Match) HasExternalURL() bool {
	return m.ExternalURL != ""
}

// Searcher queries a content index for stories matching a keyword.
type Searcher interface {
	// Name returns the provider identifier (e.g. "algolia").
	Name() string

	// Search returns stories containing keyword created after lowerBound
	// (Unix seconds), in the order the index returned them.
	Search(ctx context.Context, keyword string, lowerBound int64) ([]Match, error)
}

// userAgentTransport injects a User-Agent header into every request.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

func newHTTPClient(timeout time.Duration, userAgent string) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{base: http.DefaultTransport, userAgent: userAgent},
	}
}

// NewSearcher builds the searcher for a configured provider name.
func NewSearcher(provider, baseURL string, timeout time.Duration) (Searcher, error) {
	switch provider {
	case algoliaSourceName, "":
		return NewAlgolia(baseURL, timeout), nil
	case feedSourceName:
		return NewFeed(baseURL, timeout), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q (want algolia or hnrss)", provider)
	}
}
