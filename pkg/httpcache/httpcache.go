// Package httpcache provides disk-backed HTTP response caching with
// thundering herd prevention. A cache miss performs exactly one outbound
// request: per-source retry is deliberately absent, and failures are cached
// as negative entries so repeated searches do not hammer servers that
// already said no.
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/sfcache"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/null"
)

// maxBody caps how much of a response body is read.
const maxBody = 1 << 20

// Cacher allows external cache implementations to be shared across packages.
type Cacher interface {
	GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), ttl ...time.Duration) ([]byte, error)
	TTL() time.Duration
}

// Cache wraps sfcache for HTTP response caching.
type Cache struct {
	*sfcache.TieredCache[string, []byte]

	ttl time.Duration
}

// New creates a Cache with disk persistence at ~/.cache/rastreia.
func New(ttl time.Duration) (*Cache, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return NewWithPath(ttl, filepath.Join(cacheDir, "rastreia"))
}

// NewNull creates a Cache with no persistence: every get misses, every set
// is discarded. Useful when callers need a Cacher but caching is disabled.
func NewNull() *Cache {
	tc, err := sfcache.NewTiered[string, []byte](null.New[string, []byte]())
	if err != nil {
		panic("sfcache.NewTiered with null store: " + err.Error())
	}
	return &Cache{TieredCache: tc, ttl: 0}
}

// NewWithPath creates a Cache with disk persistence at the specified path.
func NewWithPath(ttl time.Duration, cachePath string) (*Cache, error) {
	if err := os.MkdirAll(cachePath, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	persist, err := localfs.New[string, []byte]("rastreia", cachePath)
	if err != nil {
		return nil, fmt.Errorf("create persistence layer: %w", err)
	}

	tc, err := sfcache.NewTiered[string, []byte](persist, sfcache.TTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &Cache{TieredCache: tc, ttl: ttl}, nil
}

// TTL returns the default TTL for cache entries.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// URLToKey converts a URL to a filesystem-safe cache key.
func URLToKey(rawURL string) string {
	hash := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(hash[:])
}

// HTTPError represents a non-2xx HTTP response.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// FetchURL fetches a URL through the cache. With a nil cache it degrades to
// a plain single-attempt fetch. Concurrent misses for the same key collapse
// into one request via GetSet.
func FetchURL(ctx context.Context, cache Cacher, client *http.Client, req *http.Request, logger *slog.Logger) ([]byte, error) {
	if cache == nil {
		return doFetch(ctx, client, req, logger)
	}

	data, err := cache.GetSet(ctx, URLToKey(req.URL.String()), func(ctx context.Context) ([]byte, error) {
		if logger != nil {
			logger.Debug("cache miss", "url", req.URL.String())
		}
		body, fetchErr := doFetch(ctx, client, req, logger)
		if fetchErr != nil {
			// Cache failures too, as markers, so the next search does not
			// re-ask a server that already refused.
			return encodeNegative(fetchErr), nil
		}
		return body, nil
	}, cache.TTL())
	if err != nil {
		return nil, err
	}

	if negErr, ok := decodeNegative(data, req.URL.String()); ok {
		return nil, negErr
	}
	return data, nil
}

func doFetch(ctx context.Context, client *http.Client, req *http.Request, logger *slog.Logger) ([]byte, error) {
	spacer.wait(req.URL.String(), logger)

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // intentional

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}

// Negative entries are stored as "ERROR:<code>" or "NETERR:<message>".

func encodeNegative(err error) []byte {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Appendf(nil, "ERROR:%d", httpErr.StatusCode)
	}
	return fmt.Appendf(nil, "NETERR:%s", err.Error())
}

func decodeNegative(data []byte, rawURL string) (error, bool) {
	s := string(data)
	if code, found := strings.CutPrefix(s, "ERROR:"); found {
		status, _ := strconv.Atoi(code) //nolint:errcheck // 0 is acceptable default
		return &HTTPError{StatusCode: status, URL: rawURL}, true
	}
	if msg, found := strings.CutPrefix(s, "NETERR:"); found {
		return fmt.Errorf("cached network error: %s", msg), true
	}
	return nil, false
}

// spacer enforces a minimum gap between requests to the same host, so a
// search fanning out over one platform's URLs does not look like a burst.
var spacer = &hostSpacer{minDelay: 500 * time.Millisecond}

type hostSpacer struct {
	last     sync.Map
	mu       sync.Map
	minDelay time.Duration
}

func (s *hostSpacer) wait(rawURL string, logger *slog.Logger) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return
	}

	muI, _ := s.mu.LoadOrStore(u.Host, &sync.Mutex{})
	mu, ok := muI.(*sync.Mutex)
	if !ok {
		return
	}
	mu.Lock()
	defer mu.Unlock()

	if lastI, ok := s.last.Load(u.Host); ok {
		if last, ok := lastI.(time.Time); ok {
			if elapsed := time.Since(last); elapsed < s.minDelay {
				if logger != nil {
					logger.Debug("spacing request", "host", u.Host, "wait", s.minDelay-elapsed)
				}
				time.Sleep(s.minDelay - elapsed)
			}
		}
	}
	s.last.Store(u.Host, time.Now())
}
