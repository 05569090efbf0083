package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ppiankov/hnpager/internal/store"
	"github.com/spf13/cobra"
)

var (
	statsSince  string
	statsLimit  int
	statsFormat string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recent runs from the journal",
	RunE:  statsAction,
}

func init() {
	statsCmd.Flags().StringVar(&statsSince, "since", "7d", "time window (e.g. 7d, 48h)")
	statsCmd.Flags().IntVar(&statsLimit, "limit", 24, "maximum runs to list (0 for all)")
	statsCmd.Flags().StringVar(&statsFormat, "format", "terminal", "output format: terminal, json")
	rootCmd.AddCommand(statsCmd)
}

func statsAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Storage.JournalEnabled() {
		return fmt.Errorf("run journal is disabled (storage.path: %s)", cfg.Storage.Path)
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	sinceDur, err := parseDuration(statsSince)
	if err != nil {
		return fmt.Errorf("parse --since: %w", err)
	}
	sinceTime := time.Now().Add(-sinceDur)

	ctx := cmd.Context()

	runs, err := db.Runs(ctx, sinceTime, statsLimit)
	if err != nil {
		return fmt.Errorf("get runs: %w", err)
	}
	totals, err := db.Totals(ctx, sinceTime)
	if err != nil {
		return fmt.Errorf("get totals: %w", err)
	}

	switch statsFormat {
	case "json":
		return printStatsJSON(os.Stdout, runs, totals)
	case "terminal", "":
		if totals.Runs == 0 {
			fmt.Fprintln(os.Stdout, "No runs recorded. Run 'hnpager run' first.")
			return nil
		}
		printStats(os.Stdout, runs, totals, sinceDur)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want terminal or json)", statsFormat)
	}
}

type jsonStatsOutput struct {
	Runs   []jsonRun  `json:"runs"`
	Totals jsonTotals `json:"totals"`
}

type jsonRun struct {
	RunID           string    `json:"run_id"`
	Trigger         string    `json:"trigger"`
	Keyword         string    `json:"keyword"`
	Provider        string    `json:"provider"`
	Matches         int       `json:"matches"`
	Sent            int       `json:"sent"`
	Failed          int       `json:"failed"`
	FetchFailures   int       `json:"fetch_failures"`
	SummaryFailures int       `json:"summary_failures"`
	DryRun          bool      `json:"dry_run"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	DurationSec     float64   `json:"duration_sec"`
}

type jsonTotals struct {
	Runs            int     `json:"runs"`
	Matches         int     `json:"matches"`
	Sent            int     `json:"sent"`
	Failed          int     `json:"failed"`
	FetchFailures   int     `json:"fetch_failures"`
	SummaryFailures int     `json:"summary_failures"`
	Aborted         int     `json:"aborted"`
	DeliveryPct     float64 `json:"delivery_pct"`
}

func printStatsJSON(w io.Writer, runs []store.Run, totals store.Totals) error {
	out := jsonStatsOutput{
		Runs: make([]jsonRun, 0, len(runs)),
		Totals: jsonTotals{
			Runs:            totals.Runs,
			Matches:         totals.Matches,
			Sent:            totals.Sent,
			Failed:          totals.Failed,
			FetchFailures:   totals.FetchFailures,
			SummaryFailures: totals.SummaryFailures,
			Aborted:         totals.Aborted,
			DeliveryPct:     pct(totals.Sent, totals.Sent+totals.Failed),
		},
	}
	for _, r := range runs {
		out.Runs = append(out.Runs, jsonRun{
			RunID:           r.RunID,
			Trigger:         r.Trigger,
			Keyword:         r.Keyword,
			Provider:        r.Provider,
			Matches:         r.Matches,
			Sent:            r.Sent,
			Failed:          r.Failed,
			FetchFailures:   r.FetchFailures,
			SummaryFailures: r.SummaryFailures,
			DryRun:          r.DryRun,
			Error:           r.Error,
			StartedAt:       r.StartedAt,
			DurationSec:     r.FinishedAt.Sub(r.StartedAt).Seconds(),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printStats(w io.Writer, runs []store.Run, totals store.Totals, since time.Duration) {
	fmt.Fprintf(w, "hnpager stats: %s, %d runs, %d matches\n\n", formatStatsDuration(since), totals.Runs, totals.Matches)

	fmt.Fprintln(w, "--- Recent Runs ---")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-20s  %-8s  %7s  %4s  %6s  %5s  %7s  %s\n",
		"Started", "Run", "Matches", "Sent", "Failed", "Fetch", "Summary", "Note")
	for _, r := range runs {
		note := ""
		switch {
		case r.Error != "":
			note = "aborted: " + r.Error
		case r.DryRun:
			note = "dry run"
		}
		fmt.Fprintf(w, "  %-20s  %-8s  %7d  %4d  %6d  %5d  %7d  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), shortID(r.RunID),
			r.Matches, r.Sent, r.Failed, r.FetchFailures, r.SummaryFailures, note)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Delivery ---")
	fmt.Fprintln(w)
	attempted := totals.Sent + totals.Failed
	fmt.Fprintf(w, "  Sent:      %5d  (%.1f%%)\n", totals.Sent, pct(totals.Sent, attempted))
	fmt.Fprintf(w, "  Failed:    %5d  (%.1f%%)\n", totals.Failed, pct(totals.Failed, attempted))
	fmt.Fprintf(w, "  Fetch placeholders:    %d\n", totals.FetchFailures)
	fmt.Fprintf(w, "  Summary placeholders:  %d\n", totals.SummaryFailures)
	if totals.Aborted > 0 {
		fmt.Fprintf(w, "  Aborted runs:          %d\n", totals.Aborted)
	}
	fmt.Fprintln(w)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// parseDuration handles both Go durations and "Nd" day notation.
func parseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

func formatStatsDuration(d time.Duration) string {
	hours := int(d.Hours())
	if hours >= 24 && hours%24 == 0 {
		return fmt.Sprintf("%d days", hours/24)
	}
	return fmt.Sprintf("%dh", hours)
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
