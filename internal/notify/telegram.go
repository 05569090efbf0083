// Package notify delivers rendered notifications to a Telegram chat.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/hnpager/internal/format"
	"github.com/ppiankov/hnpager/internal/logging"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Telegram Bot API host.
	DefaultBaseURL  = "https://api.telegram.org"
	DefaultInterval = time.Second
	sendTimeout     = 30 * time.Second
	parseMode       = "Markdown"
)

// ErrRejected is returned when Telegram answers with ok=false or a non-2xx status.
var ErrRejected = errors.New("telegram rejected message")

// Sender delivers a single notification.
type Sender interface {
	Send(ctx context.Context, n format.Notification) error
}

// TelegramDispatcher posts notifications through the Bot API sendMessage method.
type TelegramDispatcher struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	log      logrus.FieldLogger
}

// NewTelegram creates a dispatcher for the bot token. Sends are spaced at
// least interval apart; a non-positive interval disables pacing.
func NewTelegram(baseURL, token string, interval time.Duration, log logrus.FieldLogger) *TelegramDispatcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = logging.Discard()
	}

	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &TelegramDispatcher{
		endpoint: strings.TrimRight(baseURL, "/") + "/bot" + token + "/sendMessage",
		client:   &http.Client{Timeout: sendTimeout},
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
	}
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts one notification. It does not retry.
func (d *TelegramDispatcher) Send(ctx context.Context, n format.Notification) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:    n.ChatID,
		Text:      n.Text,
		ParseMode: parseMode,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		// The URL embeds the bot token; keep it out of logs.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("send message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var apiResp apiResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &apiResp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: HTTP %d: %s", ErrRejected, resp.StatusCode, apiResp.Description)
	}
	if len(raw) > 0 && json.Valid(raw) && !apiResp.OK {
		return fmt.Errorf("%w: %s", ErrRejected, apiResp.Description)
	}
	return nil
}

// Report counts delivery outcomes for a batch.
type Report struct {
	Sent   int
	Failed int
}

// SendAll sends notifications in order. A failed send is logged and the
// remaining notifications are still attempted.
func SendAll(ctx context.Context, s Sender, notifications []format.Notification, log logrus.FieldLogger) Report {
	if log == nil {
		log = logging.Discard()
	}

	var r Report
	for i, n := range notifications {
		if err := s.Send(ctx, n); err != nil {
			r.Failed++
			log.WithFields(logrus.Fields{
				"match_id": n.MatchID,
				"position": i + 1,
				"error":    err,
			}).Error("failed to send telegram message")
			continue
		}
		r.Sent++
		log.WithField("match_id", n.MatchID).Debug("telegram message sent")
	}
	return r
}
