package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"blogsvc/internal/app"
	"blogsvc/internal/config"
	"blogsvc/internal/media"
	"blogsvc/internal/ratelimit"
	"blogsvc/internal/server"
	"blogsvc/internal/util"
	"blogsvc/pkg/notify"
	"blogsvc/pkg/otp"
	"blogsvc/pkg/storage"
	"blogsvc/pkg/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	tokenTTL, _ := config.ParseDuration("tokenTTL", cfg.TokenTTL)
	otpTTL, _ := config.ParseDuration("otpTTL", cfg.OTPTTL)
	leeway, _ := config.ParseDuration("jwtLeeway", cfg.JWTLeeway)

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Warn("close failed", "err", err)
			}
		}
	}()

	dataStore, closer, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	sessions, err := store.NewJWTSessionStore([]byte(cfg.JWTSecret), tokenTTL, store.JWTOptions{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Leeway:   leeway,
	})
	if err != nil {
		logger.Error("failed to init sessions", "err", err)
		os.Exit(1)
	}

	var codes otp.Ledger
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		ledger, err := otp.NewRedisLedger(cfg.RedisAddr, cfg.RedisPassword, otpTTL)
		if err != nil {
			logger.Error("failed to connect redis", "err", err)
			os.Exit(1)
		}
		closers = append(closers, ledger)
		codes = ledger
	} else {
		logger.Warn("redisAddr not set; admin codes are kept in memory")
		codes = otp.NewMemoryLedger(otpTTL)
	}

	notifier, err := openNotifier(cfg, logger)
	if err != nil {
		logger.Error("failed to init notifier", "kind", cfg.Notifier, "err", err)
		os.Exit(1)
	}
	if c, ok := notifier.(io.Closer); ok {
		closers = append(closers, c)
	}

	folder := cfg.MediaFolder
	if strings.TrimSpace(folder) == "" {
		folder = "articles"
	}
	objects, err := storage.NewMinioStore(cfg.Minio, folder)
	if err != nil {
		logger.Error("failed to init object storage", "err", err)
		os.Exit(1)
	}
	relay, err := media.NewRelay(objects, media.Config{
		Folder:            folder,
		AllowedExtensions: cfg.AllowedImageExtensions,
	})
	if err != nil {
		logger.Error("failed to init media relay", "err", err)
		os.Exit(1)
	}

	appCore, err := app.New(app.Config{
		Store:         dataStore,
		Sessions:      sessions,
		Codes:         codes,
		Notifier:      notifier,
		Images:        relay,
		MailFrom:      cfg.MailFrom,
		ApproverEmail: cfg.ApproverEmail,
	})
	if err != nil {
		logger.Error("failed to init app", "err", err)
		os.Exit(1)
	}

	limits, err := openLimits(cfg, &closers)
	if err != nil {
		logger.Error("failed to init rate limits", "err", err)
		os.Exit(1)
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		logger.Error("invalid trustedProxies", "err", err)
		os.Exit(1)
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		MaxUploadBytes: cfg.MaxUploadBytes,
		AllowedOrigins: cfg.AllowedOrigins,
		Limits:         limits,
		TrustedProxies: trusted,
	})
	if err != nil {
		logger.Error("failed to init server", "err", err)
		os.Exit(1)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("blog server listening", "addr", addr, "store", cfg.StoreDriver, "notifier", cfg.Notifier)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
		return
	}
	slog.Info("server exited")
}

func openStore(ctx context.Context, cfg config.FileConfig) (store.Store, io.Closer, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		s, err := store.NewMongoStore(ctx, cfg.DatabaseURL, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.DriverMemory:
		slog.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), nil, nil
	default:
		s, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
}

func openNotifier(cfg config.FileConfig, logger *slog.Logger) (notify.Notifier, error) {
	switch cfg.Notifier {
	case config.NotifierSMTP:
		return notify.NewSMTPNotifier(cfg.SMTPNotifierConfig())
	case config.NotifierAMQP:
		return notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPQueue)
	default:
		return notify.NewLogNotifier(logger), nil
	}
}

func openLimits(cfg config.FileConfig, closers *[]io.Closer) (server.RateLimits, error) {
	newLimiter := func(name string, limit int) (ratelimit.Limiter, error) {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return ratelimit.NewMemoryFixedWindow(limit, time.Minute)
		}
		limiter, err := ratelimit.NewRedisFixedWindow(cfg.RedisAddr, cfg.RedisPassword, "blog:ratelimit:"+name, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		*closers = append(*closers, limiter)
		return limiter, nil
	}
	var limits server.RateLimits
	var err error
	if limits.Register, err = newLimiter("register", cfg.RegisterRateLimitPerMinute); err != nil {
		return limits, err
	}
	if limits.Login, err = newLimiter("login", cfg.LoginRateLimitPerMinute); err != nil {
		return limits, err
	}
	if limits.SendOTP, err = newLimiter("send-otp", cfg.SendOTPRateLimitPerMinute); err != nil {
		return limits, err
	}
	if limits.VerifyOTP, err = newLimiter("verify-otp", cfg.VerifyOTPRateLimitPerMinute); err != nil {
		return limits, err
	}
	return limits, nil
}
