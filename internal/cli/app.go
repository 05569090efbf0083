package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ppiankov/hnpager/internal/config"
	"github.com/ppiankov/hnpager/internal/fetch"
	"github.com/ppiankov/hnpager/internal/format"
	"github.com/ppiankov/hnpager/internal/notify"
	"github.com/ppiankov/hnpager/internal/pipeline"
	"github.com/ppiankov/hnpager/internal/privacy"
	"github.com/ppiankov/hnpager/internal/source"
	"github.com/ppiankov/hnpager/internal/store"
	"github.com/ppiankov/hnpager/internal/summarize"
	"github.com/ppiankov/hnpager/internal/window"
	"github.com/sirupsen/logrus"
)

// app is a pipeline plus the resources it holds open.
type app struct {
	cfg      *config.Config
	log      logrus.FieldLogger
	pipeline *pipeline.Pipeline
	journal  *store.Store
	dryRun   bool
	closers  []io.Closer
}

// newApp builds the pipeline from cfg. With dryRun set, messages are
// written to out instead of Telegram.
func newApp(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, dryRun bool, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, log: log, dryRun: dryRun}

	searcher, err := source.NewSearcher(cfg.Search.Provider, cfg.Search.BaseURL, cfg.Fetch.Timeout.Duration)
	if err != nil {
		return nil, err
	}

	summarizer := summarize.New(
		summarize.NewOpenAI(cfg.Summarize.APIKey, cfg.Summarize.Endpoint, cfg.Summarize.Attempts),
		summarize.Options{
			Model:         cfg.Summarize.Model,
			MaxTokens:     cfg.Summarize.MaxTokens,
			Temperature:   cfg.Summarize.Temperature,
			MinWords:      cfg.Summarize.MinWords,
			MaxInputWords: cfg.Summarize.MaxInputWords,
		},
		log,
	)

	var sender notify.Sender
	if dryRun {
		sender = &printSender{w: out}
	} else {
		sender = notify.NewTelegram(cfg.Telegram.BaseURL, cfg.Telegram.Token, cfg.Telegram.Interval.Duration, log)
	}

	var redactor *privacy.Redactor
	if cfg.Privacy.Redact.Enabled {
		redactor, err = privacy.New(cfg.Privacy.Redact.Patterns)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	if cfg.Storage.JournalEnabled() {
		db, err := store.Open(cfg.Storage.Path)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.journal = db
		a.closers = append(a.closers, db)
	}

	a.pipeline = pipeline.New(
		pipeline.Config{
			Keyword: cfg.Search.Keyword,
			ChatID:  cfg.Telegram.ChatID,
			Workers: cfg.Fetch.Workers,
		},
		pipeline.Deps{
			Window:     window.New(nil, cfg.Search.Skew.Duration),
			Searcher:   searcher,
			Fetchers:   a.newFetcher,
			Summarizer: summarizer,
			Sender:     sender,
			Redactor:   redactor,
			Log:        log,
		},
	)
	return a, nil
}

// newFetcher builds the fetcher for one run. Its cache lives only as long as
// the run; a redis cache is opted into with fetch.cache and its connection is
// closed by release.
func (a *app) newFetcher(ctx context.Context) (pipeline.PageFetcher, func()) {
	ua := a.cfg.Fetch.UserAgent
	if ua == "" {
		ua = source.DefaultUserAgent
	}
	timeout := a.cfg.Fetch.Timeout.Duration

	opts := []fetch.Option{
		fetch.WithPostExtractor(fetch.NewItemPage(timeout, ua)),
		fetch.WithLogger(a.log),
	}

	release := func() {}
	ttl := a.cfg.Fetch.CacheTTL.Duration
	switch a.cfg.Fetch.Cache {
	case "memory":
		opts = append(opts, fetch.WithCache(fetch.NewMemoryCache(ttl), ttl))
	case "redis":
		r := a.cfg.Fetch.Redis
		rc, err := fetch.NewRedisCache(ctx, r.Addr, r.Password, r.DB)
		if err != nil {
			a.log.WithError(err).Warn("redis cache unavailable, using in-memory cache")
			opts = append(opts, fetch.WithCache(fetch.NewMemoryCache(ttl), ttl))
			break
		}
		release = func() { _ = rc.Close() }
		opts = append(opts, fetch.WithCache(rc, ttl))
	}

	return fetch.New(fetch.NewReadability(timeout, ua), opts...), release
}

// runOnce executes one poll and journals it. Only a canceled ctx is an error.
func (a *app) runOnce(ctx context.Context, trigger string) error {
	report, err := a.pipeline.Run(ctx, trigger)
	a.record(ctx, report, err)

	fmt.Printf("run %s: %d matches, %d sent, %d failed\n", report.RunID, report.Matches, report.Sent, report.Failed)
	return err
}

func (a *app) record(ctx context.Context, report pipeline.Report, runErr error) {
	if a.journal == nil {
		return
	}
	// keep journaling when the run itself was canceled
	ctx = context.WithoutCancel(ctx)

	entry := store.Run{
		RunID:           report.RunID,
		Trigger:         report.Trigger,
		Keyword:         a.cfg.Search.Keyword,
		Provider:        a.cfg.Search.Provider,
		LowerBound:      report.LowerBound,
		Matches:         report.Matches,
		Sent:            report.Sent,
		Failed:          report.Failed,
		FetchFailures:   report.FetchFailures,
		SummaryFailures: report.SummaryFailures,
		DryRun:          a.dryRun,
		StartedAt:       report.StartedAt,
		FinishedAt:      report.FinishedAt,
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}

	log := a.log.WithField("run_id", report.RunID)
	if err := a.journal.RecordRun(ctx, entry); err != nil {
		log.WithError(err).Warn("journal write failed")
		return
	}
	if n, err := a.journal.PruneOld(ctx, a.cfg.Storage.RetainDays); err != nil {
		log.WithError(err).Warn("journal prune failed")
	} else if n > 0 {
		log.WithField("pruned", n).Debug("old runs pruned")
	}
}

// Close releases the journal.
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// printSender writes notifications to w instead of delivering them.
type printSender struct {
	w io.Writer
}

func (p *printSender) Send(_ context.Context, n format.Notification) error {
	_, err := fmt.Fprintf(p.w, "--- chat %d ---\n%s\n\n", n.ChatID, n.Text)
	return err
}
