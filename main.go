package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yourname/go-shortly/internal/cache"
	"github.com/yourname/go-shortly/internal/config"
	"github.com/yourname/go-shortly/internal/core"
	httpapi "github.com/yourname/go-shortly/internal/http"
	"github.com/yourname/go-shortly/internal/store"
)

func main() {
	// Fast JSON logs by default; pretty if running in a TTY/dev
	if isatty() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	cfg := config.Load()

	var dsnFlag string
	flag.StringVar(&dsnFlag, "dsn", "", "database DSN (overrides env DB_DSN)")
	flag.Parse()
	if dsnFlag != "" {
		cfg.DBDSN = dsnFlag
	}

	st, err := openStore(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Str("dsn", cfg.DBDSN).Msg("open store")
	}
	defer st.Close()

	var c cache.Cache
	if cfg.RedisAddr != "" {
		c = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), 10*time.Minute)
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis mapping cache")
	} else {
		c = cache.NewMemory()
	}

	svc := core.NewService(st, c, cfg.BaseURL, cfg.DefaultTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if n := cfg.CachePrewarm; n > 0 {
		if err := svc.PrewarmCache(ctx, n); err != nil {
			log.Warn().Err(err).Msg("cache prewarm")
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpapi.NewRouter(cfg, svc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal")
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("bye")
}

func openStore(dsn string) (store.Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return store.OpenPostgres(dsn)
	}
	return store.OpenSQLite(dsn)
}

func isatty() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
