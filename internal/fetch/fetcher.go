package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/ppiankov/hnpager/internal/logging"
	"github.com/ppiankov/hnpager/internal/outcome"
	"github.com/ppiankov/hnpager/internal/source"
	"github.com/sirupsen/logrus"
)

// Page is a match's resolved URL and extracted text.
type Page struct {
	ResolvedURL string         // URL actually fetched
	External    bool           // ResolvedURL is the story's external link
	Text        string         // extracted text, empty on failure
	Failure     outcome.Reason // why Text is missing
	Err         error          // underlying extraction error
}

// Body returns the extracted text, or the placeholder for the failure.
func (p Page) Body() string {
	if p.Failure.Failed() {
		return outcome.Placeholder(p.Failure)
	}
	return p.Text
}

// Fetcher resolves the best URL for a match and extracts its text.
type Fetcher struct {
	external Extractor
	post     Extractor
	cache    TextCache
	cacheTTL time.Duration
	log      logrus.FieldLogger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithPostExtractor uses e for discussion pages instead of the default extractor.
func WithPostExtractor(e Extractor) Option {
	return func(f *Fetcher) { f.post = e }
}

// WithCache consults c before extracting and stores successful extractions for ttl.
func WithCache(c TextCache, ttl time.Duration) Option {
	return func(f *Fetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Fetcher) { f.log = l }
}

// New creates a Fetcher that extracts pages with extractor.
func New(extractor Extractor, opts ...Option) *Fetcher {
	f := &Fetcher{
		external: extractor,
		post:     extractor,
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Resolve picks the URL to fetch: the external link when present, otherwise
// the discussion page.
func Resolve(m source.Match) (pageURL string, external bool) {
	if m.HasExternalURL() {
		return m.ExternalURL, true
	}
	return m.PostURL(), false
}

// Fetch extracts the text for m. Extraction failures are reported in the
// returned Page, never as an error.
func (f *Fetcher) Fetch(ctx context.Context, m source.Match) Page {
	pageURL, external := Resolve(m)
	page := Page{ResolvedURL: pageURL, External: external}

	extractor, failure := f.post, outcome.PostFetchFailed
	if external {
		extractor, failure = f.external, outcome.ExternalFetchFailed
	}

	log := f.log.WithFields(logrus.Fields{"match_id": m.ID, "url": pageURL})

	if text, ok := f.cached(ctx, log, pageURL); ok {
		page.Text = text
		return page
	}

	text, err := extractor.Extract(ctx, pageURL)
	if err != nil {
		log.WithError(err).Warn("page extraction failed")
		page.Failure = failure
		page.Err = err
		return page
	}
	page.Text = text

	if f.cache != nil {
		if err := f.cache.Set(ctx, pageURL, text, f.cacheTTL); err != nil {
			log.WithError(err).Debug("cache store failed")
		}
	}
	return page
}

func (f *Fetcher) cached(ctx context.Context, log logrus.FieldLogger, pageURL string) (string, bool) {
	if f.cache == nil {
		return "", false
	}
	text, err := f.cache.Get(ctx, pageURL)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			log.WithError(err).Debug("cache lookup failed")
		}
		return "", false
	}
	log.Debug("page text served from cache")
	return text, true
}
