package main

import (
	"context"
	"net/http"
	"net/mail"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"conference/internal/config"
	"conference/internal/logger"
	cmail "conference/internal/mail"
	"conference/internal/metrics"
	"conference/internal/notify"
	"conference/internal/queue"
	"conference/internal/store"
)

// Worker consumes queued notifications, renders them and sends the mail.
func main() {
	cfg := config.Load()
	hostname, _ := os.Hostname()
	log := logger.NewRollbar(logger.New(os.Stdout, "worker "), logger.RollbarConfig{
		Token:       cfg.RollbarToken,
		Environment: cfg.Env,
		ServerHost:  hostname,
	})
	defer log.Flush()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend == "memory" {
		log.Error("the worker needs a shared queue, set QUEUE_BACKEND=redis")
		return
	}
	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Warn("redis not reachable yet, consumer will keep retrying", "addr", cfg.RedisAddr)
	}
	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	q.OnError(func(err error) { log.Warn("queue error", "err", err) })

	renderer, err := notify.NewRenderer()
	if err != nil {
		log.Error("load templates failed", "err", err)
		return
	}
	from := mail.Address{Name: cfg.MailFromName, Address: cfg.MailFromAddress}
	mailer := cmail.New(cfg.MailBackend, cfg.SendgridAPIKey, from, cfg.MailFromName, os.Stdout)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.WorkerMetrics != "" {
		srv := &http.Server{Addr: cfg.WorkerMetrics, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server failed", "err", err)
			}
		}()
		defer srv.Close()
	}

	log.Info("worker started, waiting for notifications", "queue", cfg.QueueKey, "mail", cfg.MailBackend)
	if err := notify.Deliver(ctx, q, notify.NewMailDispatcher(renderer, mailer), log, m); err != nil {
		log.Error("consume failed", "err", err)
		return
	}
	log.Info("worker stopped")
}
