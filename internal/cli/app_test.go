package cli

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/hnpager/internal/config"
	"github.com/ppiankov/hnpager/internal/logging"
	"github.com/ppiankov/hnpager/internal/source"
)

func TestNewFetcher_CacheScopedToRun(t *testing.T) {
	var version atomic.Int32
	version.Store(1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var paras strings.Builder
		for i := 0; i < 8; i++ {
			fmt.Fprintf(&paras, "<p>Article revision %d says evaluation, guardrails and latency work dominate the schedule for teams shipping chat assistants.</p>\n", version.Load())
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, longArticle, paras.String())
	}))
	defer ts.Close()

	cfg := &config.Config{}
	cfg.Fetch.Timeout.Duration = 5 * time.Second
	cfg.Fetch.Cache = "memory"
	cfg.Fetch.CacheTTL.Duration = time.Hour
	a := &app{cfg: cfg, log: logging.Discard()}

	m := source.Match{ID: "1", Title: "Shipping assistants", ExternalURL: ts.URL + "/a"}
	ctx := context.Background()

	first, release := a.newFetcher(ctx)
	if got := first.Fetch(ctx, m).Text; !strings.Contains(got, "revision 1") {
		t.Fatalf("first fetch = %q", got)
	}
	version.Store(2)
	if got := first.Fetch(ctx, m).Text; !strings.Contains(got, "revision 1") {
		t.Errorf("same run should reuse cached text, got %q", got)
	}
	release()

	second, release := a.newFetcher(ctx)
	defer release()
	got := second.Fetch(ctx, m).Text
	if !strings.Contains(got, "revision 2") || strings.Contains(got, "revision 1") {
		t.Errorf("next run served stale text: %q", got)
	}
}

func TestNewFetcher_RedisUnavailableFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, longArticle, strings.Repeat("<p>Teams shipping chat assistants report that evaluation, guardrails and latency work dominate the schedule.</p>\n", 8))
	}))
	defer ts.Close()

	cfg := &config.Config{}
	cfg.Fetch.Timeout.Duration = 5 * time.Second
	cfg.Fetch.Cache = "redis"
	cfg.Fetch.CacheTTL.Duration = time.Hour
	cfg.Fetch.Redis.Addr = "127.0.0.1:1"
	a := &app{cfg: cfg, log: logging.Discard()}

	ctx := context.Background()
	f, release := a.newFetcher(ctx)
	defer release()

	page := f.Fetch(ctx, source.Match{ID: "2", ExternalURL: ts.URL + "/b"})
	if page.Failure.Failed() {
		t.Fatalf("fetch failed: %v", page.Err)
	}
}
