package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
<title>Hacker News: Newest</title>
<link>https://news.ycombinator.com/newest</link>
<item>
  <title>Show HN: A thing</title>
  <link>https://example.com/thing</link>
  <guid isPermaLink="false">https://news.ycombinator.com/item?id=300</guid>
  <dc:creator>alice</dc:creator>
  <pubDate>%s</pubDate>
</item>
<item>
  <title>Ask HN: Question?</title>
  <link>https://news.ycombinator.com/item?id=200</link>
  <guid isPermaLink="false">https://news.ycombinator.com/item?id=200</guid>
  <dc:creator>bob</dc:creator>
  <pubDate>%s</pubDate>
</item>
<item>
  <title>Too old</title>
  <link>https://example.com/old</link>
  <guid isPermaLink="false">https://news.ycombinator.com/item?id=100</guid>
  <dc:creator>carol</dc:creator>
  <pubDate>%s</pubDate>
</item>
</channel>
</rss>`

func TestFeedSearch(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	recent := now.Add(-time.Hour).Format(time.RFC1123Z)
	recent2 := now.Add(-2 * time.Hour).Format(time.RFC1123Z)
	old := now.Add(-48 * time.Hour).Format(time.RFC1123Z)

	var gotQ string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/newest" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotQ = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, testFeed, recent, recent2, old)
	}))
	defer ts.Close()

	f := NewFeed(ts.URL, time.Second)
	if f.Name() != "hnrss" {
		t.Errorf("name = %q, want hnrss", f.Name())
	}

	matches, err := f.Search(context.Background(), "ChatGPT", now.Add(-5*time.Hour).Unix())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQ != "ChatGPT" {
		t.Errorf("q = %q, want ChatGPT", gotQ)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}

	if matches[0].ID != "300" || matches[0].ExternalURL != "https://example.com/thing" {
		t.Errorf("match[0] = %+v", matches[0])
	}
	if matches[0].Author != "alice" {
		t.Errorf("author = %q, want alice", matches[0].Author)
	}
	if matches[1].ID != "200" || matches[1].HasExternalURL() {
		t.Errorf("match[1] = %+v, want text post without external url", matches[1])
	}
}

func TestFeedSearch_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	if _, err := NewFeed(ts.URL, time.Second).Search(context.Background(), "x", 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestItemID(t *testing.T) {
	tests := []struct {
		name string
		item gofeed.Item
		want string
	}{
		{"guid", gofeed.Item{GUID: "https://news.ycombinator.com/item?id=42"}, "42"},
		{"link fallback", gofeed.Item{GUID: "tag:x", Link: "https://news.ycombinator.com/item?id=7"}, "7"},
		{"none", gofeed.Item{GUID: "https://example.com/?id=1", Link: "https://example.com"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := itemID(&tt.item); got != tt.want {
				t.Errorf("itemID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestItemPublishedTime(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	if got := itemPublishedTime(&gofeed.Item{PublishedParsed: &now, UpdatedParsed: &earlier}); !got.Equal(now) {
		t.Errorf("published: got %v, want %v", got, now)
	}
	if got := itemPublishedTime(&gofeed.Item{UpdatedParsed: &earlier}); !got.Equal(earlier) {
		t.Errorf("updated fallback: got %v, want %v", got, earlier)
	}
	if got := itemPublishedTime(&gofeed.Item{}); !got.IsZero() {
		t.Errorf("none: got %v, want zero", got)
	}
}
