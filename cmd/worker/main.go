package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"

	"github.com/wh1teend/paygate-liqpay/internal/config"
	"github.com/wh1teend/paygate-liqpay/internal/notify"
	"github.com/wh1teend/paygate-liqpay/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB},
		asynq.Config{
			Concurrency: 5,
			Queues:      map[string]int{notify.QueueName: 1},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(notify.TaskPaymentReceived, notify.HandlePaymentReceived(logger))

	go func() {
		<-ctx.Done()
		logger.Info().Msg("stopping worker")
		srv.Shutdown()
	}()

	logger.Info().Msg("worker started")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("run worker")
	}
}
