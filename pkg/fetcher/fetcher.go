// Package fetcher retrieves source URLs concurrently and reduces each
// response to a plain-text excerpt. Failures never abort the batch: every
// URL yields an Outcome, and errors become data on it.
package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rastreia-dev/rastreia/pkg/htmlutil"
	"github.com/rastreia-dev/rastreia/pkg/httpcache"
	"github.com/rastreia-dev/rastreia/pkg/sources"
)

const (
	defaultConcurrency  = 8
	defaultTimeout      = 10 * time.Second
	defaultExcerptLimit = 5000
	defaultUserAgent    = "rastreia/1.0 (+https://github.com/rastreia-dev/rastreia)"
)

// ErrorKind classifies why a fetch produced no content.
type ErrorKind int

const (
	// ErrorNone means the fetch succeeded.
	ErrorNone ErrorKind = iota
	// ErrorTimeout means the per-request deadline expired.
	ErrorTimeout
	// ErrorHTTP means the server answered with a non-2xx status.
	ErrorHTTP
	// ErrorNetwork covers DNS, connection and transport failures.
	ErrorNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorTimeout:
		return "timeout"
	case ErrorHTTP:
		return "http_error"
	case ErrorNetwork:
		return "network_error"
	default:
		return "unknown"
	}
}

// Outcome records what a single source URL returned. BodyExcerpt is empty
// unless Succeeded is true, and StatusCode is zero unless the server
// actually answered. Title and Description come from the page markup when
// the body was HTML.
type Outcome struct {
	URL         string
	Platform    string
	Title       string
	Description string
	BodyExcerpt string
	StatusCode  int
	ErrorKind   ErrorKind
	Succeeded   bool
}

// Fetcher fans a set of source descriptors out over HTTP.
type Fetcher struct {
	client       *http.Client
	cache        httpcache.Cacher
	logger       *slog.Logger
	userAgent    string
	concurrency  int
	timeout      time.Duration
	excerptLimit int
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// WithCache routes fetches through a response cache.
func WithCache(cache httpcache.Cacher) Option {
	return func(f *Fetcher) { f.cache = cache }
}

// WithClient sets a custom HTTP client.
func WithClient(client *http.Client) Option {
	return func(f *Fetcher) { f.client = client }
}

// WithConcurrency bounds how many fetches run at once.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithExcerptLimit caps excerpt length in runes.
func WithExcerptLimit(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.excerptLimit = n
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:       &http.Client{Timeout: defaultTimeout + time.Second},
		logger:       slog.Default(),
		userAgent:    defaultUserAgent,
		concurrency:  defaultConcurrency,
		timeout:      defaultTimeout,
		excerptLimit: defaultExcerptLimit,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll fetches every descriptor and returns one Outcome per input, in
// input order. It returns early only when ctx itself is cancelled; a slow
// or broken source costs at most its own slot.
func (f *Fetcher) FetchAll(ctx context.Context, descs []sources.Descriptor) ([]Outcome, error) {
	outcomes := make([]Outcome, len(descs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for i, d := range descs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes[i] = Outcome{URL: fetchTarget(d), Platform: d.Platform, ErrorKind: ErrorTimeout}
				return nil //nolint:nilerr // cancellation is recorded on the outcome
			}
			outcomes[i] = f.fetchOne(gctx, d)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func fetchTarget(d sources.Descriptor) string {
	if d.FetchURL != "" {
		return d.FetchURL
	}
	return d.URL
}

func (f *Fetcher) fetchOne(ctx context.Context, d sources.Descriptor) Outcome {
	target := fetchTarget(d)
	out := Outcome{URL: target, Platform: d.Platform}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		out.ErrorKind = ErrorNetwork
		f.logger.DebugContext(ctx, "invalid source URL", "platform", d.Platform, "url", target, "error", err)
		return out
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")

	body, err := httpcache.FetchURL(reqCtx, f.cache, f.client, req, f.logger)
	if err != nil {
		out.ErrorKind, out.StatusCode = classify(err)
		f.logger.DebugContext(ctx, "source fetch failed",
			"platform", d.Platform, "url", target, "kind", out.ErrorKind.String(), "status", out.StatusCode)
		return out
	}

	content := string(body)
	if followed, ok := f.followClientRedirect(reqCtx, target, content); ok {
		content = followed
	}
	if htmlutil.LooksLikeHTML(content) {
		out.Title = htmlutil.Title(content)
		out.Description = htmlutil.Description(content)
	}

	out.Succeeded = true
	out.StatusCode = http.StatusOK
	out.BodyExcerpt = f.excerpt(content)
	f.logger.DebugContext(ctx, "source fetched",
		"platform", d.Platform, "url", target, "excerpt_len", len(out.BodyExcerpt))
	return out
}

// followClientRedirect resolves one meta-refresh or JavaScript redirect.
// Search portals hide their results behind such interstitials; a single hop
// is enough, and a failed hop keeps the original body.
func (f *Fetcher) followClientRedirect(ctx context.Context, fromURL, body string) (string, bool) {
	if !htmlutil.LooksLikeHTML(body) {
		return "", false
	}
	target := htmlutil.RedirectTarget(body)
	if target == "" {
		return "", false
	}
	base, err := url.Parse(fromURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(target)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", f.userAgent)

	followed, err := httpcache.FetchURL(ctx, f.cache, f.client, req, f.logger)
	if err != nil {
		f.logger.DebugContext(ctx, "client redirect not followed", "from", fromURL, "to", resolved, "error", err)
		return "", false
	}
	f.logger.DebugContext(ctx, "client redirect followed", "from", fromURL, "to", resolved)
	return string(followed), true
}

func classify(err error) (ErrorKind, int) {
	var httpErr *httpcache.HTTPError
	if errors.As(err, &httpErr) {
		return ErrorHTTP, httpErr.StatusCode
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout, 0
	}
	return ErrorNetwork, 0
}

// excerpt reduces a body to readable text bounded by the excerpt limit.
// HTML documents are stripped to their visible text first.
func (f *Fetcher) excerpt(body string) string {
	if htmlutil.LooksLikeHTML(body) {
		body = htmlutil.ToText(body)
	}
	runes := []rune(body)
	if len(runes) > f.excerptLimit {
		runes = runes[:f.excerptLimit]
	}
	return string(runes)
}
