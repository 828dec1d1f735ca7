package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientRetriesTransientStatus(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	c := NewClient()
	err := c.SendAndParseRetry(context.Background(), &RequestOptions{
		Method: MethodGet,
		URL:    srv.URL,
	}, &out, DefaultRetryPolicy(2))
	if err != nil {
		t.Fatalf("SendAndParseRetry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 requests, got %d", calls)
	}
	if !out.OK {
		t.Fatalf("response not decoded")
	}
}

func TestClientDoesNotRetryMalformedBody(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	var out map[string]interface{}
	c := NewClient()
	err := c.SendAndParseRetry(context.Background(), &RequestOptions{
		Method: MethodGet,
		URL:    srv.URL,
	}, &out, DefaultRetryPolicy(2))
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if calls != 1 {
		t.Fatalf("malformed body must not be retried, got %d requests", calls)
	}
}

func TestClientDoesNotRetryClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "no such symbol", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient()
	err := c.SendAndParseRetry(context.Background(), &RequestOptions{
		Method: MethodGet,
		URL:    srv.URL,
	}, nil, DefaultRetryPolicy(2))

	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound {
		t.Fatalf("expected 404 status error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("4xx must not be retried, got %d requests", calls)
	}
}
