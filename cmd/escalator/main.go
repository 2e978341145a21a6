package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/modgate/modgate/pkg/config"
	"github.com/modgate/modgate/pkg/escalate"
	"github.com/modgate/modgate/pkg/eventbus"
	"github.com/modgate/modgate/pkg/notify"
	"github.com/modgate/modgate/pkg/store/postgres"
	redisclient "github.com/modgate/modgate/pkg/store/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	db, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redis, err := redisclient.NewClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()

	bus := eventbus.NewBus(redis.Client())

	assignmentRepo := postgres.NewAssignmentRepository(db.DB())
	membershipRepo := postgres.NewMembershipRepository(db.DB())
	outboxRepo := postgres.NewOutboxRepository(db.DB())
	dispatcher := notify.NewOutboxDispatcher(outboxRepo, logger)

	scanner := escalate.NewScanner(assignmentRepo, membershipRepo, dispatcher, bus, logger, cfg.Escalator.ScanInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := scanner.Run(ctx); err != nil && err != context.Canceled {
			logger.Fatal("escalation scanner stopped with error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("escalation scanner shutting down")
}
