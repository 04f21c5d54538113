package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorveOne/MinisterioRips/internal/exitcode"
	"github.com/lorveOne/MinisterioRips/internal/logging"
	"github.com/lorveOne/MinisterioRips/internal/scheduler"
)

var (
	flagCron       string
	flagInterval   time.Duration
	flagContinuous bool
	flagTimezone   string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline on a recurring schedule",
	Long:  "Runs the pipeline on a cron schedule (default) or, with --continuous, on a fixed interval. Blocks until SIGINT/SIGTERM.",
	RunE:  runSchedule,
}

func init() {
	f := scheduleCmd.Flags()
	f.StringVar(&flagCron, "cron", "", "6-field cron expression (or set CRON_SCHEDULE, default every 30 minutes)")
	f.DurationVar(&flagInterval, "interval", 0, "Fixed interval for --continuous (or set INTERVALO_CONTINUO in ms)")
	f.BoolVar(&flagContinuous, "continuous", false, "Use fixed-interval mode instead of cron")
	f.StringVar(&flagTimezone, "timezone", scheduler.DefaultTimezone, "Timezone for cron schedules")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	log := logging.Setup(logFormat)

	cfg, err := loadConfig()
	if err == nil {
		err = cfg.ValidateWithAPI()
	}
	if err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	if flagCron != "" {
		cfg.CronSchedule = flagCron
	}
	if flagInterval > 0 {
		cfg.Interval = flagInterval
	}

	sched := scheduler.New(newPipeline(cfg, log), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flagContinuous {
		sched.StartInterval(ctx, cfg.Interval)
	} else {
		if err := sched.StartCron(cfg.CronSchedule, flagTimezone); err != nil {
			log.Error().Err(err).Str("cron", cfg.CronSchedule).Msg("invalid schedule")
			os.Exit(exitcode.SchedulerError)
		}
		<-ctx.Done()
	}

	sched.Stop()
	stats := sched.Stats()
	log.Info().
		Int("total_runs", stats.TotalRuns).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Int("skipped", stats.Skipped).
		Msg("scheduler shut down")
	return nil
}
