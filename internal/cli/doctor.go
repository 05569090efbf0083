package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/hnpager/internal/config"
	"github.com/ppiankov/hnpager/internal/fetch"
	"github.com/ppiankov/hnpager/internal/privacy"
	"github.com/ppiankov/hnpager/internal/store"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

// staleRunFactor flags the journal when the last run is older than this
// many schedule periods.
const staleRunFactor = 3

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, credentials and journal",
	RunE:  doctorAction,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := loadConfig()
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		fmt.Println("\nSome checks failed.")
		return fmt.Errorf("some checks failed")
	}
	printCheck(true, "config.yaml (keyword %q via %s)", cfg.Search.Keyword, cfg.Search.Provider)

	// Telegram credentials
	if err := cfg.CheckDelivery(); err != nil {
		printCheck(false, "telegram: %v", err)
		ok = false
	} else if cfg.Telegram.ChatIDFallback {
		printCheck(true, "telegram (%s unparseable, using default chat %d)", cfg.Telegram.ChatIDEnv, config.DefaultChatID)
	} else {
		printCheck(true, "telegram (chat %d)", cfg.Telegram.ChatID)
	}

	// LLM key
	if cfg.Summarize.APIKey == "" {
		printInfo("%s not set: long pages will get the summary placeholder", cfg.Summarize.APIKeyEnv)
	} else {
		printCheck(true, "summarizer key %s", cfg.Summarize.APIKeyEnv)
	}

	// Schedule
	sched, err := cron.ParseStandard(cfg.Schedule.Cron)
	if err != nil {
		printCheck(false, "schedule %q: %v", cfg.Schedule.Cron, err)
		ok = false
	} else {
		next := sched.Next(time.Now())
		printCheck(true, "schedule %q (next run %s)", cfg.Schedule.Cron, next.Local().Format(time.RFC3339))
	}

	// Redaction patterns
	if cfg.Privacy.Redact.Enabled {
		if _, err := privacy.New(cfg.Privacy.Redact.Patterns); err != nil {
			printCheck(false, "redaction: %v", err)
			ok = false
		} else {
			printCheck(true, "redaction (%d patterns)", len(cfg.Privacy.Redact.Patterns))
		}
	}

	// Cache
	if cfg.Fetch.Cache == "redis" {
		rc, err := fetch.NewRedisCache(ctx, cfg.Fetch.Redis.Addr, cfg.Fetch.Redis.Password, cfg.Fetch.Redis.DB)
		if err != nil {
			printInfo("redis %s unreachable, runs will fall back to the in-memory cache", cfg.Fetch.Redis.Addr)
		} else {
			_ = rc.Close()
			printCheck(true, "redis cache %s", cfg.Fetch.Redis.Addr)
		}
	} else {
		printCheck(true, "cache %s", cfg.Fetch.Cache)
	}

	// Journal
	if !cfg.Storage.JournalEnabled() {
		printInfo("run journal disabled")
	} else if db, err := store.Open(cfg.Storage.Path); err != nil {
		printCheck(false, "journal: %v", err)
		ok = false
	} else {
		defer func() { _ = db.Close() }()
		printCheck(true, "journal %s", cfg.Storage.Path)
		if sched != nil {
			checkLastRun(ctx, db, sched)
		}
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

// checkLastRun reports when the journal suggests the schedule has stopped firing.
func checkLastRun(ctx context.Context, db *store.Store, sched cron.Schedule) {
	last, found, err := db.LastRun(ctx)
	if err != nil || !found {
		return
	}

	period := sched.Next(last.StartedAt).Sub(last.StartedAt)
	if period <= 0 {
		return
	}
	if age := time.Since(last.StartedAt); age > staleRunFactor*period {
		printInfo("last run %s ago (%s), scheduler may not be running", age.Round(time.Minute), shortID(last.RunID))
	}
	if last.Failed > 0 && last.Sent == 0 {
		printInfo("last run delivered nothing: all %d messages failed", last.Failed)
	}
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}
