package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	manualTrigger    = "manual"
	scheduledTrigger = "cronjob scheduled"
)

var (
	runCron    string
	runWatch   bool
	runDryRun  bool
	runTrigger string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search, summarize and notify once, or on a cron schedule",
	RunE:  runAction,
}

func init() {
	runCmd.Flags().StringVar(&runCron, "cron", "", `run on this cron schedule (e.g. "33 * * * *")`)
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "run on schedule.cron from config.yaml")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print messages instead of sending them")
	runCmd.Flags().StringVar(&runTrigger, "trigger", manualTrigger, "label logged with a one-off run")
	rootCmd.AddCommand(runCmd)
}

func runAction(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	if !runDryRun {
		if err := cfg.CheckDelivery(); err != nil {
			return err
		}
	}
	if cfg.Telegram.ChatIDFallback {
		log.WithField("chat_id", cfg.Telegram.ChatID).Warnf("%s is not a number, using default chat", cfg.Telegram.ChatIDEnv)
	}

	expr := runCron
	if expr == "" && runWatch {
		expr = cfg.Schedule.Cron
	}
	var sched cron.Schedule
	if expr != "" {
		sched, err = cron.ParseStandard(expr)
		if err != nil {
			return fmt.Errorf("parse cron %q: %w", expr, err)
		}
	}

	a, err := newApp(ctx, cfg, log, runDryRun, os.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if sched == nil {
		return ignoreCanceled(a.runOnce(ctx, runTrigger))
	}

	log.WithField("cron", expr).Info("scheduler started")
	return runScheduled(ctx, sched, log, func(ctx context.Context) error {
		return a.runOnce(ctx, scheduledTrigger)
	})
}

// runScheduled calls fn at each activation of sched until ctx is done, then
// waits for an in-flight run to finish. Runs never overlap: an activation that
// arrives while fn is still running is skipped. A failed run is logged and the
// schedule carries on.
func runScheduled(ctx context.Context, sched cron.Schedule, log logrus.FieldLogger, fn func(context.Context) error) error {
	if sched.Next(time.Now()).IsZero() {
		return errors.New("schedule has no upcoming activations")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))))
	c.Schedule(sched, cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		if err := ignoreCanceled(fn(ctx)); err != nil {
			log.WithError(err).Warn("scheduled run failed")
		}
	}))

	c.Start()
	log.WithField("next", sched.Next(time.Now()).Format(time.RFC3339)).Debug("waiting for first run")
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// ignoreCanceled treats shutdown by signal as a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
