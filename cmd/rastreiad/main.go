// Command rastreiad serves the search pipeline over HTTP. Searches are
// submitted with POST /search and polled at GET /jobs/{id}.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rastreia-dev/rastreia/pkg/config"
	"github.com/rastreia-dev/rastreia/pkg/enrich"
	"github.com/rastreia-dev/rastreia/pkg/fetcher"
	"github.com/rastreia-dev/rastreia/pkg/httpcache"
	"github.com/rastreia-dev/rastreia/pkg/jobs"
	"github.com/rastreia-dev/rastreia/pkg/rastreia"
	"github.com/rastreia-dev/rastreia/pkg/server"
	"github.com/rastreia-dev/rastreia/pkg/sources"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	catalog := sources.Default()
	if cfg.CatalogPath != "" {
		catalog, err = sources.Load(cfg.CatalogPath)
		if err != nil {
			logger.Error("load catalog", "path", cfg.CatalogPath, "error", err)
			os.Exit(1)
		}
	}

	fetchOpts := []fetcher.Option{
		fetcher.WithLogger(logger),
		fetcher.WithConcurrency(cfg.MaxConcurrency),
		fetcher.WithTimeout(cfg.FetchTimeout),
	}
	if cfg.CacheDir != "" {
		cache, err := httpcache.NewWithPath(cfg.CacheTTL, cfg.CacheDir)
		if err != nil {
			logger.Warn("cache unavailable, continuing without", "error", err)
		} else {
			defer func() {
				if err := cache.Close(); err != nil {
					logger.Warn("cache close", "error", err)
				}
			}()
			fetchOpts = append(fetchOpts, fetcher.WithCache(cache))
		}
	}

	searchOpts := []rastreia.Option{
		rastreia.WithLogger(logger),
		rastreia.WithCatalog(catalog),
		rastreia.WithFetcher(fetcher.New(fetchOpts...)),
		rastreia.WithDeadline(cfg.SearchDeadline),
	}
	if cfg.OpenAIAPIKey != "" {
		llm, err := enrich.NewOpenAIModel(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
		if err != nil {
			logger.Error("init model", "error", err)
			os.Exit(1)
		}
		searchOpts = append(searchOpts, rastreia.WithEnricher(enrich.New(llm, enrich.WithLogger(logger))))
		logger.Info("model analysis enabled", "model", cfg.OpenAIModel)
	} else {
		logger.Warn("no API key configured, reports will be links-only")
	}

	store, err := jobs.NewStore(jobs.WithDir(cfg.JobsDir), jobs.WithLogger(logger))
	if err != nil {
		logger.Error("init job store", "error", err)
		os.Exit(1)
	}

	srv := server.New(rastreia.New(searchOpts...), store, logger)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
