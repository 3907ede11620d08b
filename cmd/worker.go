package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/payment-orchestrator/internal/tasks"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the task worker",
	Long:  `Consume queued tasks from kafka and release delayed tasks parked in redis`,
	Run: func(cmd *cobra.Command, args []string) {
		startWorker()
	},
}

var (
	skipScheduler bool
	pollInterval  time.Duration
)

func startWorker() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	log := deps.Logger

	if deps.Publisher == nil {
		log.Error("the worker needs tasks.driver=kafka; the local driver runs tasks inside the server")
		deps.Close(context.Background())
		os.Exit(1)
	}

	cfg := deps.Config.Tasks
	group, err := tasks.NewKafkaConsumerGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		log.Error("failed to create consumer group", "error", err)
		deps.Close(context.Background())
		os.Exit(1)
	}
	consumer := tasks.NewKafkaConsumer(group, []string{cfg.Kafka.Topic}, deps.TaskRouter, deps.Publisher, deps.Retrier(), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})

	if !skipScheduler {
		interval := cfg.PollInterval
		if pollInterval > 0 {
			interval = pollInterval
		}
		g.Go(func() error {
			deps.Scheduler.Run(gctx, interval, deps.Publisher.Publish)
			return nil
		})
	}

	log.Info("task worker is running. Press Ctrl+C to stop.",
		"topic", cfg.Kafka.Topic,
		"group_id", cfg.Kafka.GroupID,
		"scheduler", !skipScheduler)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("task worker stopped with error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	deps.Close(shutdownCtx)
	log.Info("task worker shutdown complete")
}

func init() {
	workerCmd.Flags().BoolVar(&skipScheduler, "no-scheduler", false, "Do not release delayed tasks from redis in this process")
	workerCmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "How often delayed tasks are checked (overrides config)")
}
