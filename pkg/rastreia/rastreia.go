// Package rastreia orchestrates a person search: expand the source catalog,
// fetch everything, enrich with a model, validate, and assemble a report.
// Every degraded path still produces a report; only a blown overall
// deadline or a cancelled context surfaces as an error.
package rastreia

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rastreia-dev/rastreia/pkg/enrich"
	"github.com/rastreia-dev/rastreia/pkg/fetcher"
	"github.com/rastreia-dev/rastreia/pkg/github"
	"github.com/rastreia-dev/rastreia/pkg/normalize"
	"github.com/rastreia-dev/rastreia/pkg/query"
	"github.com/rastreia-dev/rastreia/pkg/report"
	"github.com/rastreia-dev/rastreia/pkg/sources"
)

// ErrSearchTimeout indicates the search as a whole exceeded its deadline.
var ErrSearchTimeout = errors.New("search deadline exceeded")

const defaultDeadline = 45 * time.Second

// Enricher abstracts the model-backed analysis step so searches can run
// without one (and tests can fake one).
type Enricher interface {
	Analyze(ctx context.Context, q query.Query, outcomes []fetcher.Outcome) (*enrich.Result, error)
}

// Searcher runs person searches.
type Searcher struct {
	catalog  sources.Catalog
	fetcher  *fetcher.Fetcher
	enricher Enricher
	logger   *slog.Logger
	deadline time.Duration
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithCatalog replaces the default source catalog.
func WithCatalog(c sources.Catalog) Option {
	return func(s *Searcher) {
		if len(c) > 0 {
			s.catalog = c
		}
	}
}

// WithFetcher replaces the default fetcher.
func WithFetcher(f *fetcher.Fetcher) Option {
	return func(s *Searcher) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithEnricher sets the model-backed analysis step. Without one, every
// search produces a fallback report.
func WithEnricher(e Enricher) Option {
	return func(s *Searcher) { s.enricher = e }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) { s.logger = logger }
}

// WithDeadline sets the overall search deadline.
func WithDeadline(d time.Duration) Option {
	return func(s *Searcher) {
		if d > 0 {
			s.deadline = d
		}
	}
}

// New creates a Searcher.
func New(opts ...Option) *Searcher {
	s := &Searcher{
		catalog:  sources.Default(),
		logger:   slog.Default(),
		deadline: defaultDeadline,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = fetcher.New(fetcher.WithLogger(s.logger))
	}
	return s
}

// Search runs the full pipeline for one query.
func (s *Searcher) Search(ctx context.Context, q query.Query) (*report.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	descs := s.catalog.Build(q)
	s.logger.InfoContext(ctx, "search started", "query", q.Label(), "sources", len(descs))

	outcomes, err := s.fetcher.FetchAll(ctx, descs)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: fetching sources", ErrSearchTimeout)
		}
		return nil, err
	}

	succeeded := 0
	for _, o := range outcomes {
		if o.Succeeded {
			succeeded++
		}
	}
	gh := verifiedGitHub(q, outcomes)
	s.logger.InfoContext(ctx, "sources fetched",
		"succeeded", succeeded, "total", len(outcomes), "github_verified", gh != nil)

	if succeeded == 0 {
		return report.Fallback(q, descs, outcomes, "nenhuma fonte retornou conteúdo", gh), nil
	}
	if s.enricher == nil {
		return report.Fallback(q, descs, outcomes, "análise por modelo desabilitada", gh), nil
	}

	result, err := s.enricher.Analyze(ctx, q, outcomes)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: enrichment", ErrSearchTimeout)
		}
		switch {
		case errors.Is(err, enrich.ErrUnparsable):
			s.logger.WarnContext(ctx, "enrichment unparsable, falling back", "error", err)
			return report.Fallback(q, descs, outcomes, "resposta do modelo não pôde ser interpretada", gh), nil
		case errors.Is(err, enrich.ErrCall):
			s.logger.WarnContext(ctx, "enrichment call failed, falling back", "error", err)
			return report.Fallback(q, descs, outcomes, "falha na chamada ao modelo de análise", gh), nil
		default:
			return nil, err
		}
	}

	persons, alerts := normalize.Normalize(q, result.Persons, outcomes, gh)
	if len(persons) == 0 {
		return report.Fallback(q, descs, outcomes, "o modelo não identificou pessoas nos trechos", gh), nil
	}
	alerts = append(result.Alerts, alerts...)

	summary := buildSummary(q, persons, result)
	return report.Assemble(q, descs, outcomes, persons, summary, alerts), nil
}

// verifiedGitHub looks for a successful GitHub API outcome whose account
// plausibly belongs to the queried person. Only a username match or a full
// name match counts; a mere successful fetch proves nothing.
func verifiedGitHub(q query.Query, outcomes []fetcher.Outcome) *github.User {
	for _, o := range outcomes {
		if !o.Succeeded {
			continue
		}
		if !github.Match(o.URL) && !strings.EqualFold(o.Platform, "github") {
			continue
		}
		u, err := github.ParseUser([]byte(o.BodyExcerpt))
		if err != nil {
			continue
		}
		if (q.Username != "" && strings.EqualFold(u.Login, q.Username)) || u.MatchesName(q.Name) {
			return u
		}
	}
	return nil
}

// buildSummary prefers the model's own overview; when it gave none, a
// sentence is composed from the profile count and its notes.
func buildSummary(q query.Query, persons []report.PersonProfile, result *enrich.Result) string {
	if s := strings.TrimSpace(result.Summary); s != "" {
		return s
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Busca por %q identificou %d perfil(is) possível(is) em fontes públicas.", q.Name, len(persons))
	if notes := strings.TrimSpace(result.Notes); notes != "" {
		b.WriteString(" ")
		b.WriteString(notes)
	}
	return b.String()
}
