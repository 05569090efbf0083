// Package summarize condenses page text into a short summary when there is
// enough of it to be worth condensing.
package summarize

import (
	"context"
	"strings"

	"github.com/ppiankov/hnpager/internal/logging"
	"github.com/ppiankov/hnpager/internal/outcome"
	"github.com/sirupsen/logrus"
)

const (
	DefaultModel         = "gpt-3.5-turbo-16k"
	DefaultMaxTokens     = 128
	DefaultTemperature   = 0.8
	DefaultMinWords      = 100
	DefaultMaxInputWords = 10000

	systemPrompt = "You're an AI assistant."
	promptPrefix = "summarize this within 100 words: "

	// ShortTextPrefix introduces page text too short to summarize.
	ShortTextPrefix = "Bot found minimal info on webpage to warrant a summary, please see the text on the page the Bot grabbed below if there are any, or use the link above to see the news at its source:\n"
)

// Kind describes how a Summary's text was produced.
type Kind int

const (
	Condensed Kind = iota // generated by the model
	Raw                   // short page text shown verbatim
	Failed                // model call failed
)

// Summary is the text shown under a notification's header.
type Summary struct {
	Text    string
	Kind    Kind
	Failure outcome.Reason
	Err     error
}

// Display returns the summary text or the failure placeholder.
func (s Summary) Display() string {
	if s.Failure.Failed() {
		return outcome.Placeholder(s.Failure)
	}
	return s.Text
}

// Request is one independent chat completion.
type Request struct {
	SessionKey  string // caller identity; one per match, never shared
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Completer generates text for a chat request. Implementations retry
// transient failures themselves.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Options tunes the summarization policy and generation parameters.
type Options struct {
	Model         string
	MaxTokens     int
	Temperature   float64
	MinWords      int // summarize only when the text has more words than this
	MaxInputWords int // truncate model input to this many words
}

func (o *Options) applyDefaults() {
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MinWords <= 0 {
		o.MinWords = DefaultMinWords
	}
	if o.MaxInputWords <= 0 {
		o.MaxInputWords = DefaultMaxInputWords
	}
}

// Summarizer applies the summarize-or-show-raw policy.
type Summarizer struct {
	client Completer
	opts   Options
	log    logrus.FieldLogger
}

// New creates a Summarizer. A nil log discards output.
func New(client Completer, opts Options, log logrus.FieldLogger) *Summarizer {
	opts.applyDefaults()
	if log == nil {
		log = logging.Discard()
	}
	return &Summarizer{client: client, opts: opts, log: log}
}

// Summarize condenses body when it exceeds the word threshold, otherwise
// returns it verbatim behind ShortTextPrefix. key identifies the match so
// each call is an independent session.
func (s *Summarizer) Summarize(ctx context.Context, key, body string) Summary {
	if WordCount(body) <= s.opts.MinWords {
		return Summary{Text: ShortTextPrefix + body, Kind: Raw}
	}

	req := Request{
		SessionKey:  key,
		System:      systemPrompt,
		Prompt:      promptPrefix + TruncateWords(body, s.opts.MaxInputWords),
		Model:       s.opts.Model,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	}

	text, err := s.client.Complete(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrNoChoices
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"match_id": key, "error": err}).Warn("summarization failed")
		return Summary{Kind: Failed, Failure: outcome.SummaryFailed, Err: err}
	}
	return Summary{Text: strings.TrimSpace(text), Kind: Condensed}
}
