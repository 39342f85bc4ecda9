package httpcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := NewWithPath(time.Minute, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("close cache: %v", err)
		}
	})
	return c
}

func mustRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestFetchURLCachesResponses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "hello")
	}))
	defer srv.Close()

	cache := newCache(t)
	ctx := context.Background()

	for range 2 {
		body, err := FetchURL(ctx, cache, srv.Client(), mustRequest(t, srv.URL), nil)
		if err != nil {
			t.Fatalf("FetchURL() error: %v", err)
		}
		if string(body) != "hello" {
			t.Errorf("body = %q, want hello", body)
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1 (second should hit cache)", got)
	}
}

func TestFetchURLNegativeCaching(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cache := newCache(t)
	ctx := context.Background()

	for range 2 {
		_, err := FetchURL(ctx, cache, srv.Client(), mustRequest(t, srv.URL), nil)
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("FetchURL() error = %v, want HTTPError", err)
		}
		if httpErr.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode = %d, want 404", httpErr.StatusCode)
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1 (failure should be cached)", got)
	}
}

func TestFetchURLWithoutCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "fresh")
	}))
	defer srv.Close()

	ctx := context.Background()
	for range 2 {
		body, err := FetchURL(ctx, nil, srv.Client(), mustRequest(t, srv.URL), nil)
		if err != nil {
			t.Fatalf("FetchURL() error: %v", err)
		}
		if string(body) != "fresh" {
			t.Errorf("body = %q, want fresh", body)
		}
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server saw %d requests, want 2 without a cache", got)
	}
}

func TestURLToKey(t *testing.T) {
	a := URLToKey("https://example.com/a")
	b := URLToKey("https://example.com/b")
	if a == b {
		t.Error("distinct URLs produced the same key")
	}
	if a != URLToKey("https://example.com/a") {
		t.Error("same URL produced different keys")
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}
}

func TestHTTPErrorMessage(t *testing.T) {
	err := &HTTPError{URL: "https://example.com", StatusCode: 503}
	want := "HTTP 503 fetching https://example.com"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
