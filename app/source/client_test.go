package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(ClientOptions{RetryInterval: time.Millisecond})

	var resp struct {
		OK bool `json:"ok"`
	}
	if err := client.GetJSON(context.Background(), server.URL, &resp); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if !resp.OK {
		t.Error("Expected decoded response")
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got: %d", calls.Load())
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{RetryInterval: time.Millisecond})

	_, err := client.GetBytes(context.Background(), server.URL)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Expected StatusError, got: %v", err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got: %d", se.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected a single attempt, got: %d", calls.Load())
	}
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{RetryInterval: time.Millisecond, MaxRetries: 2})

	if _, err := client.GetBytes(context.Background(), server.URL); err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got: %d", calls.Load())
	}
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(ClientOptions{Timeout: 30 * time.Millisecond, RetryInterval: time.Millisecond})

	_, err := client.GetBytes(context.Background(), server.URL)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got: %v", err)
	}
}

func TestClientHeaders(t *testing.T) {
	var gotUA, gotAuth, gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	base := NewClient(ClientOptions{UserAgent: "test-agent"})
	client := base.WithHeader("Authorization", "Bearer abc")

	var out map[string]any
	if err := client.PostJSON(context.Background(), server.URL, map[string]string{"q": "x"}, &out); err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}

	if gotUA != "test-agent" {
		t.Errorf("Expected user agent 'test-agent', got: %q", gotUA)
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("Expected authorization header, got: %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Expected JSON content type, got: %q", gotContentType)
	}
	if gotBody != `{"q":"x"}` {
		t.Errorf("Expected JSON body, got: %q", gotBody)
	}

	if len(base.headers) != 0 {
		t.Error("Expected WithHeader not to modify the original client")
	}
}
