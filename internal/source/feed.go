package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	feedSourceName = "hnrss"
	// DefaultFeedBase serves keyword-filtered Hacker News RSS feeds.
	DefaultFeedBase = "https://hnrss.org"
)

// FeedSearcher queries the hnrss keyword feed instead of the Algolia API.
type FeedSearcher struct {
	baseURL string
	timeout time.Duration
}

// NewFeed creates an hnrss searcher. An empty baseURL uses DefaultFeedBase.
func NewFeed(baseURL string, timeout time.Duration) *FeedSearcher {
	if baseURL == "" {
		baseURL = DefaultFeedBase
	}
	if timeout <= 0 {
		timeout = searchTimeout
	}
	return &FeedSearcher{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

func (f *FeedSearcher) Name() string {
	return feedSourceName
}

func (f *FeedSearcher) Search(ctx context.Context, keyword string, lowerBound int64) ([]Match, error) {
	q := url.Values{}
	q.Set("q", keyword)
	feedURL := f.baseURL + "/newest?" + q.Encode()

	fp := gofeed.NewParser()
	fp.Client = newHTTPClient(f.timeout, DefaultUserAgent)

	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("hnrss: %w", err)
	}
	return matchesFromFeed(feed, lowerBound), nil
}

// matchesFromFeed keeps feed order and drops items without an HN item ID or
// created at or before lowerBound.
func matchesFromFeed(feed *gofeed.Feed, lowerBound int64) []Match {
	var matches []Match
	for _, item := range feed.Items {
		id := itemID(item)
		if id == "" {
			continue
		}
		created := itemPublishedTime(item)
		if created.IsZero() || created.Unix() <= lowerBound {
			continue
		}

		m := Match{
			ID:        id,
			Title:     strings.TrimSpace(item.Title),
			Author:    itemAuthor(item),
			CreatedAt: created,
		}
		if link := strings.TrimSpace(item.Link); link != "" && !isItemPage(link) {
			m.ExternalURL = link
		}
		matches = append(matches, m)
	}
	return matches
}

// itemID extracts the story ID from the discussion link hnrss uses as GUID.
func itemID(item *gofeed.Item) string {
	for _, candidate := range []string{item.GUID, item.Link} {
		if !isItemPage(candidate) {
			continue
		}
		u, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		if id := u.Query().Get("id"); id != "" {
			return id
		}
	}
	return ""
}

func isItemPage(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return u.Host == "news.ycombinator.com" && u.Path == "/item"
}

func itemAuthor(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	return ""
}

func itemPublishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}
