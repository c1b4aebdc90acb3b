package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wvjwtsso.org/internal/config"
	"wvjwtsso.org/internal/httpapi"
	"wvjwtsso.org/internal/issuer"
	"wvjwtsso.org/internal/obs"
	"wvjwtsso.org/internal/session"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	log := obs.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	obs.SetLevel(cfg.Log.Level)
	obs.Init()
	obs.SetBuild(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Log.AccessLogPath != "" {
		accessLog := obs.OpenAccessLog(cfg.Log.AccessLogPath)
		defer accessLog.Close()
		go accessLog.RotateDaily(ctx)
	}

	store, closeStore, err := openSessionStore(ctx, cfg.Session)
	if err != nil {
		log.WithError(err).Fatal("open session store")
	}
	defer closeStore()

	iss, err := issuer.New(cfg.Issuer)
	if err != nil {
		log.WithError(err).Fatal("build issuer")
	}

	api, err := httpapi.New(httpapi.Deps{
		Issuer: iss,
		Sessions: session.NewManager(store,
			session.WithTTL(cfg.Session.TTL),
			session.WithSecureCookie(cfg.Session.CookieSecure),
		),
		WorkvivoBaseURL:   cfg.WorkvivoBaseURL,
		LoginRedirectPath: cfg.Server.LoginRedirectPath,
		Version:           version,
		LoginRatePerSec:   cfg.Server.LoginRatePerSec,
		LoginRateBurst:    cfg.Server.LoginRateBurst,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
	})
	if err != nil {
		log.WithError(err).Fatal("build http api")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithField("addr", srv.Addr).WithField("version", version).Info("Server running Workvivo JWT SSO demo")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("Stopped")
}

func openSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, func(), error) {
	switch cfg.Backend {
	case "redis":
		store, err := session.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		db, err := session.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		store := session.NewPostgresStore(db)
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := store.EnsureSchema(initCtx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		go sweep(ctx, cfg.TTL, func(ctx context.Context) { _, _ = store.DeleteExpired(ctx) })
		return store, func() { _ = db.Close() }, nil
	default:
		store := session.NewMemoryStore()
		go store.RunSweeper(ctx, time.Minute)
		return store, func() {}, nil
	}
}

func sweep(ctx context.Context, ttl time.Duration, fn func(context.Context)) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
