// Command rastreia runs a one-shot person search and prints the report as
// JSON.
//
// Usage:
//
//	rastreia -name "Maria Silva" -city "Recife" -username mariasilva
//	rastreia -name "João Souza" -no-cache -debug
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rastreia-dev/rastreia/pkg/enrich"
	"github.com/rastreia-dev/rastreia/pkg/fetcher"
	"github.com/rastreia-dev/rastreia/pkg/httpcache"
	"github.com/rastreia-dev/rastreia/pkg/query"
	"github.com/rastreia-dev/rastreia/pkg/rastreia"
	"github.com/rastreia-dev/rastreia/pkg/sources"
)

func main() {
	name := flag.String("name", "", "full name to search for (required)")
	city := flag.String("city", "", "city to scope the search")
	username := flag.String("username", "", "known username on social platforms")
	email := flag.String("email", "", "known e-mail address")
	phone := flag.String("phone", "", "known phone number")
	catalogPath := flag.String("catalog", "", "path to a JSON source catalog (default: built-in)")
	debug := flag.Bool("debug", false, "enable debug logging")
	noCache := flag.Bool("no-cache", false, "disable HTTP caching")
	noEnrich := flag.Bool("no-enrich", false, "skip model analysis, emit a links-only report")
	cacheTTL := flag.Duration("cache-ttl", time.Hour, "cache time-to-live")
	deadline := flag.Duration("deadline", 45*time.Second, "overall search deadline")
	flag.Parse()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "Usage: rastreia -name \"Full Name\" [options]")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	q, err := query.New(*name, *city, *username, *email, *phone)
	if err != nil {
		logger.Error("invalid query", "error", err)
		os.Exit(1)
	}

	catalog := sources.Default()
	if *catalogPath != "" {
		catalog, err = sources.Load(*catalogPath)
		if err != nil {
			logger.Error("failed to load catalog", "path", *catalogPath, "error", err)
			os.Exit(1)
		}
	}

	var fetchOpts []fetcher.Option
	fetchOpts = append(fetchOpts, fetcher.WithLogger(logger))
	if !*noCache {
		cache, err := httpcache.New(*cacheTTL)
		if err != nil {
			logger.Warn("failed to initialize cache, continuing without cache", "error", err)
		} else {
			defer func() {
				if err := cache.Close(); err != nil {
					logger.Warn("failed to close cache", "error", err)
				}
			}()
			fetchOpts = append(fetchOpts, fetcher.WithCache(cache))
		}
	}

	searchOpts := []rastreia.Option{
		rastreia.WithLogger(logger),
		rastreia.WithCatalog(catalog),
		rastreia.WithFetcher(fetcher.New(fetchOpts...)),
		rastreia.WithDeadline(*deadline),
	}

	if !*noEnrich {
		apiKey := os.Getenv("RASTREIA_OPENAI_API_KEY")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		model := os.Getenv("RASTREIA_OPENAI_MODEL")
		if model == "" {
			model = "gpt-4o-mini"
		}
		llm, err := enrich.NewOpenAIModel(apiKey, model, os.Getenv("RASTREIA_OPENAI_BASE_URL"))
		if err != nil {
			logger.Warn("model unavailable, reports will be links-only", "error", err)
		} else {
			searchOpts = append(searchOpts, rastreia.WithEnricher(enrich.New(llm, enrich.WithLogger(logger))))
		}
	}

	searcher := rastreia.New(searchOpts...)

	rep, err := searcher.Search(context.Background(), q)
	if err != nil {
		if errors.Is(err, rastreia.ErrSearchTimeout) {
			logger.Error("search deadline exceeded", "deadline", deadline.String())
		} else {
			logger.Error("search failed", "error", err)
		}
		os.Exit(1)
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		logger.Error("failed to encode report", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
