package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const articlePage = `<!DOCTYPE html>
<html><head><title>Language models in production</title></head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article>
<h1>Language models in production</h1>
<p>%[1]s Operators running language models in production learn quickly that latency budgets, prompt caching and careful batching matter more than raw benchmark numbers.</p>
<p>%[1]s The second lesson is observability: without per-request traces it is nearly impossible to tell whether a regression came from the model, the retrieval layer or the network.</p>
<p>%[1]s Finally, cost control requires routing cheap requests to small models and reserving the large ones for the hard cases that actually need them.</p>
</article>
<footer>Copyright</footer>
</body></html>`

const itemPage = `<html><body>
<table class="fatitem"><tr><td>
<span class="titleline"><a href="item?id=42">Ask HN: What are you using ChatGPT for?</a></span>
<div class="toptext">Curious how people use it day to day.</div>
</td></tr></table>
<table class="comment-tree">
<tr><td><div class="commtext c00">Mostly for writing regex.</div></td></tr>
<tr><td><div class="commtext c00">Drafting emails.</div></td></tr>
</table>
</body></html>`

func TestReadabilityExtractor(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, articlePage, "Lorem ipsum dolor sit amet, consectetur adipiscing elit.")
	}))
	defer ts.Close()

	e := NewReadability(time.Second, "hnpager-test")
	text, err := e.Extract(context.Background(), ts.URL+"/post")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "latency budgets") || !strings.Contains(text, "cost control") {
		t.Errorf("text missing article body: %q", text)
	}
	if gotUA != "hnpager-test" {
		t.Errorf("user agent = %q", gotUA)
	}
}

func TestReadabilityExtractor_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	_, err := NewReadability(time.Second, "").Extract(context.Background(), ts.URL)
	if err == nil || !strings.Contains(err.Error(), "HTTP 403") {
		t.Errorf("err = %v, want HTTP 403", err)
	}
}

func TestReadabilityExtractor_BadURL(t *testing.T) {
	if _, err := NewReadability(time.Second, "").Extract(context.Background(), "::not a url"); err == nil {
		t.Error("expected error for invalid url")
	}
}

func TestItemPageExtractor(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, itemPage)
	}))
	defer ts.Close()

	text, err := NewItemPage(time.Second, "").Extract(context.Background(), ts.URL+"/item?id=42")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "Curious how people use it day to day.\n\nMostly for writing regex.\n\nDrafting emails."
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
}

func TestItemPageExtractor_Empty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><table class="fatitem"></table></body></html>`)
	}))
	defer ts.Close()

	_, err := NewItemPage(time.Second, "").Extract(context.Background(), ts.URL)
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
}

func TestItemPageExtractor_CommentCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := range maxItemComments + 5 {
		fmt.Fprintf(&b, `<div class="commtext">comment %d</div>`, i)
	}
	b.WriteString("</body></html>")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, b.String())
	}))
	defer ts.Close()

	text, err := NewItemPage(time.Second, "").Extract(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got := len(strings.Split(text, "\n\n")); got != maxItemComments {
		t.Errorf("comments = %d, want %d", got, maxItemComments)
	}
}
