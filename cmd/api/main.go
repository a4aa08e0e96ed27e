package main

import (
	"context"
	"net/http"
	"net/mail"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"conference/internal/auth"
	"conference/internal/clock"
	"conference/internal/cloudinary"
	"conference/internal/config"
	"conference/internal/httpapi"
	"conference/internal/hub"
	"conference/internal/keylock"
	"conference/internal/livestream"
	"conference/internal/logger"
	cmail "conference/internal/mail"
	"conference/internal/metrics"
	"conference/internal/notify"
	"conference/internal/queue"
	"conference/internal/recorder"
	"conference/internal/store"
	"conference/internal/subject"
	"conference/internal/verification"
)

func main() {
	cfg := config.Load()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	hostname, _ := os.Hostname()
	log := logger.NewRollbar(logger.New(os.Stdout, "api "), logger.RollbarConfig{
		Token:       cfg.RollbarToken,
		Environment: cfg.Env,
		ServerHost:  hostname,
	})
	defer log.Flush()

	if err := runHTTP(cfg, log); err != nil {
		log.Error("http server failed", "err", err)
		log.Flush()
		os.Exit(1)
	}
}

func runHTTP(cfg config.App, log logger.Logger) error {
	ctx := context.Background()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := store.Migrate(db.Client, "up"); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		rq := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
		rq.OnError(func(err error) { log.Warn("queue error", "err", err) })
		q = rq
	}

	clk := clock.Real{}
	locks := keylock.New()
	subjects := subject.NewPostgresRepository(db.Client)
	chat := hub.NewPostgresChat(db.Client)
	tokens := auth.NewTokens(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL, clk)
	authSvc := auth.NewService(auth.NewPostgresAccounts(db.Client), tokens, clk, log).
		WithSubjects(httpapi.SubjectAccounts(subjects))

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	h := hub.New(chat,
		hub.WithOrigins(origins),
		hub.WithLogger(log),
		hub.WithMetrics(m),
		hub.WithNotifyAuth(func(r *http.Request) bool {
			return auth.RequestHasRole(tokens, r, auth.RoleAdmin, auth.RoleVolunteer)
		}),
	)

	direct, err := mailDispatcher(cfg)
	if err != nil {
		return err
	}
	deliverCtx, stopDelivery := context.WithCancel(ctx)
	defer stopDelivery()
	var mailer notify.Dispatcher = direct
	if cfg.NotifyMode == "queue" {
		mailer = notify.NewQueueDispatcher(q)
		// Nothing outside this process can drain an in-memory queue.
		if cfg.QueueBackend == "memory" {
			go func() {
				if err := notify.Deliver(deliverCtx, q, direct, log, m); err != nil {
					log.Error("in-process delivery stopped", "err", err)
				}
			}()
		}
	}
	verifier := verification.New(subjects, notify.Multi{mailer, notify.NewBroadcast(h)},
		verification.WithClock(clk),
		verification.WithLogger(log),
		verification.WithMetrics(m),
		verification.WithLocker(locks),
		verification.WithAllowResend(cfg.AllowResend),
	)
	rec := recorder.New(subjects,
		recorder.WithClock(clk),
		recorder.WithLocation(cfg.Location()),
		recorder.WithLocker(locks),
		recorder.WithMetrics(m),
	)

	pictures := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	if pictures.Enabled() {
		log.Info("cloudinary configured", "cloud", cfg.CloudinaryCloudName)
	} else {
		log.Warn("cloudinary not configured, picture uploads disabled")
	}

	r := httpapi.NewRouter(httpapi.Deps{
		Subjects:   subjects,
		Recorder:   rec,
		Verifier:   verifier,
		Auth:       authSvc,
		Livestream: livestream.NewService(livestream.NewPostgresStore(db.Client), clk.Now),
		Hub:        h,
		Chat:       chat,
		Pictures:   pictures,
		Locks:      locks,
		Clock:      clk,
		Log:        log,
		Health: map[string]httpapi.HealthFunc{
			"db":    db.Healthy,
			"redis": redisClient.Healthy,
		},
		Metrics:         promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		DefaultPassword: cfg.DefaultPassword,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	drain(shutdownCtx, srv, verifier, h, log)

	log.Info("server exited")
	return nil
}

// drain stops accepting requests, lets background welcome notifications finish and
// only then closes the hub they broadcast through.
func drain(ctx context.Context, srv *http.Server, verifier *verification.Verifier, h *hub.Hub, log logger.Logger) {
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("server forced shutdown", "err", err)
	}
	verifier.Wait()
	h.Close()
}

func mailDispatcher(cfg config.App) (*notify.MailDispatcher, error) {
	renderer, err := notify.NewRenderer()
	if err != nil {
		return nil, err
	}
	from := mail.Address{Name: cfg.MailFromName, Address: cfg.MailFromAddress}
	mailer := cmail.New(cfg.MailBackend, cfg.SendgridAPIKey, from, cfg.MailFromName, os.Stdout)
	return notify.NewMailDispatcher(renderer, mailer), nil
}
