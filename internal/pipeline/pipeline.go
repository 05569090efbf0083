// Package pipeline runs one poll: search for new stories, enrich and
// summarize each, then deliver a notification per story.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/hnpager/internal/fetch"
	"github.com/ppiankov/hnpager/internal/format"
	"github.com/ppiankov/hnpager/internal/logging"
	"github.com/ppiankov/hnpager/internal/notify"
	"github.com/ppiankov/hnpager/internal/outcome"
	"github.com/ppiankov/hnpager/internal/privacy"
	"github.com/ppiankov/hnpager/internal/source"
	"github.com/ppiankov/hnpager/internal/summarize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

// LowerBounder yields the window start for a run.
type LowerBounder interface {
	LowerBound() int64
}

// PageFetcher extracts the text behind a match.
type PageFetcher interface {
	Fetch(ctx context.Context, m source.Match) fetch.Page
}

// FetcherFactory builds the fetcher for one run. release frees anything the
// fetcher holds, including its page cache, once the run is over.
type FetcherFactory func(ctx context.Context) (fetcher PageFetcher, release func())

// TextSummarizer condenses page text.
type TextSummarizer interface {
	Summarize(ctx context.Context, key, body string) summarize.Summary
}

// Config holds per-deployment settings.
type Config struct {
	Keyword string
	ChatID  int64
	Workers int // concurrent matches in flight
}

// Deps are the collaborators a Pipeline drives.
type Deps struct {
	Window     LowerBounder
	Searcher   source.Searcher
	Fetchers   FetcherFactory
	Summarizer TextSummarizer
	Sender     notify.Sender
	Redactor   *privacy.Redactor // optional
	Log        logrus.FieldLogger
}

// Report summarizes one run.
type Report struct {
	RunID           string
	Trigger         string
	LowerBound      int64
	Matches         int
	Sent            int
	Failed          int
	FetchFailures   int
	SummaryFailures int
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Pipeline wires the stages together. It holds no state between runs: each
// Run gets its own fetcher and cache from Deps.Fetchers.
type Pipeline struct {
	cfg  Config
	deps Deps
	now  func() time.Time
}

// New creates a Pipeline.
func New(cfg Config, deps Deps) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if deps.Log == nil {
		deps.Log = logging.Discard()
	}
	return &Pipeline{cfg: cfg, deps: deps, now: time.Now}
}

// processed is the result slot owned by one match task.
type processed struct {
	notification   format.Notification
	fetchFailure   outcome.Reason
	summaryFailure outcome.Reason
}

// Run executes one poll. trigger is an opaque label that is only logged.
// Stage failures are absorbed; the only error returned is ctx's.
func (p *Pipeline) Run(ctx context.Context, trigger string) (Report, error) {
	report := Report{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: p.now(),
	}
	log := p.deps.Log.WithField("run_id", report.RunID)
	log.WithFields(logrus.Fields{"trigger": trigger, "keyword": p.cfg.Keyword}).Info("run started")

	report.LowerBound = p.deps.Window.LowerBound()

	matches, err := p.deps.Searcher.Search(ctx, p.cfg.Keyword, report.LowerBound)
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		log.WithFields(logrus.Fields{
			"stage":    "search",
			"provider": p.deps.Searcher.Name(),
			"error":    err,
		}).Warn("search failed, treating as no new matches")
		matches = nil
	}
	report.Matches = len(matches)
	log.WithFields(logrus.Fields{"matches": len(matches), "lower_bound": report.LowerBound}).Info("search complete")

	fetcher, release := p.deps.Fetchers(ctx)
	defer release()

	results, err := p.processAll(ctx, fetcher, matches, log)
	if err != nil {
		return report, err
	}

	notifications := make([]format.Notification, 0, len(results))
	for _, r := range results {
		if r.fetchFailure.Failed() {
			report.FetchFailures++
		}
		if r.summaryFailure.Failed() {
			report.SummaryFailures++
		}
		notifications = append(notifications, r.notification)
	}

	dr := notify.SendAll(ctx, p.deps.Sender, notifications, log)
	report.Sent = dr.Sent
	report.Failed = dr.Failed
	report.FinishedAt = p.now()

	log.WithFields(logrus.Fields{
		"sent":             report.Sent,
		"failed":           report.Failed,
		"fetch_failures":   report.FetchFailures,
		"summary_failures": report.SummaryFailures,
		"duration":         report.FinishedAt.Sub(report.StartedAt).String(),
	}).Info("run finished")

	return report, ctx.Err()
}

// processAll enriches matches concurrently. Each task writes only its own
// slot, so results keep search order.
func (p *Pipeline) processAll(ctx context.Context, fetcher PageFetcher, matches []source.Match, log logrus.FieldLogger) ([]processed, error) {
	results := make([]processed, len(matches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, m := range matches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.processMatch(gctx, fetcher, m, log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) processMatch(ctx context.Context, fetcher PageFetcher, m source.Match, log logrus.FieldLogger) processed {
	page := fetcher.Fetch(ctx, m)
	body := p.deps.Redactor.Apply(page.Body())
	summary := p.deps.Summarizer.Summarize(ctx, m.ID, body)

	log.WithFields(logrus.Fields{
		"match_id":      m.ID,
		"url":           page.ResolvedURL,
		"fetch":         page.Failure.String(),
		"summary":       summary.Failure.String(),
		"summary_words": summarize.WordCount(summary.Display()),
	}).Debug("match processed")

	return processed{
		notification: format.Notification{
			MatchID: m.ID,
			ChatID:  p.cfg.ChatID,
			Text:    format.Format(m, page, summary.Display()),
		},
		fetchFailure:   page.Failure,
		summaryFailure: summary.Failure,
	}
}
