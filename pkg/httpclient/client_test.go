package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func TestAttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"success":true,"data":{"ok":true}}`))
	}))
	defer srv.Close()

	tokens := NewMemoryTokenStore()
	tokens.Save("abc123")
	c := New(srv.URL, tokens)

	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.Get(context.Background(), "/ping", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotAuth != "Bearer abc123" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if !out.OK {
		t.Fatal("data not decoded")
	}
}

func TestNoAuthorizationHeaderWithoutToken(t *testing.T) {
	var sawHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header["Authorization"]
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, NewMemoryTokenStore())
	if err := c.Get(context.Background(), "/public", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if sawHeader {
		t.Fatal("Authorization header sent without a stored token")
	}
}

func TestUnauthorizedEvictsTokenAndFiresHookOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"error":"token expired"}`))
	}))
	defer srv.Close()

	tokens := NewMemoryTokenStore()
	tokens.Save("stale")
	var fired atomic.Int32
	c := New(srv.URL, tokens, WithOnUnauthorized(func() { fired.Add(1) }))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.Get(context.Background(), "/me", nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
				t.Errorf("err = %v, want 401 APIError", err)
			}
		}()
	}
	wg.Wait()

	if n := fired.Load(); n != 1 {
		t.Fatalf("hook fired %d times, want 1", n)
	}
	if _, ok := tokens.Token(); ok {
		t.Fatal("token not evicted after 401")
	}
}

func TestSaveTokenReArmsUnauthorizedHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"error":"expired"}`))
	}))
	defer srv.Close()

	var fired atomic.Int32
	tokens := NewMemoryTokenStore()
	c := New(srv.URL, tokens, WithOnUnauthorized(func() { fired.Add(1) }))

	c.Get(context.Background(), "/me", nil)
	c.Get(context.Background(), "/me", nil)
	if fired.Load() != 1 {
		t.Fatalf("hook fired %d times before re-arm, want 1", fired.Load())
	}

	if err := c.SaveToken("fresh"); err != nil {
		t.Fatalf("save token: %v", err)
	}
	c.Get(context.Background(), "/me", nil)
	if fired.Load() != 2 {
		t.Fatalf("hook fired %d times after re-arm, want 2", fired.Load())
	}
}

func TestForbiddenKeepsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"success":false,"error":"admin only"}`))
	}))
	defer srv.Close()

	tokens := NewMemoryTokenStore()
	tokens.Save("valid")
	var fired atomic.Int32
	c := New(srv.URL, tokens, WithOnUnauthorized(func() { fired.Add(1) }))

	err := c.Get(context.Background(), "/admin", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Message != "admin only" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
	if _, ok := tokens.Token(); !ok {
		t.Fatal("token evicted on 403")
	}
	if fired.Load() != 0 {
		t.Fatal("unauthorized hook fired on 403")
	}
}

func TestTransportFailureHasStatusZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := New(srv.URL, NewMemoryTokenStore())
	err := c.Get(context.Background(), "/anything", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Status != 0 {
		t.Fatalf("status = %d, want 0 for transport failure", apiErr.Status)
	}
	if apiErr.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
}

func TestServerErrorMessageExtracted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"resume is required"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, NewMemoryTokenStore())
	err := c.Post(context.Background(), "/api/interviews/start", map[string]string{}, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "resume is required" {
		t.Fatalf("err = %v, want message from envelope", err)
	}
}
