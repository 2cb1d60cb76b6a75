package featurestore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestXGSampleSizeParsesSuccessfulResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/teams/team-a/xg-samples" {
			t.Errorf("request path = %s, want /teams/team-a/xg-samples", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"samples": 42}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 100)
	got, err := c.XGSampleSize(context.Background(), "team-a")
	if err != nil {
		t.Fatalf("XGSampleSize() error = %v", err)
	}
	if got != 42 {
		t.Errorf("XGSampleSize() = %d, want 42", got)
	}
}

func TestXGSampleSizeNonOKStatusReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 100)
	_, err := c.XGSampleSize(context.Background(), "team-a")
	if err == nil {
		t.Fatal("XGSampleSize() error = nil, want an error for a non-200 response")
	}
}

func TestXGSampleSizeMalformedBodyReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 100)
	_, err := c.XGSampleSize(context.Background(), "team-a")
	if err == nil {
		t.Fatal("XGSampleSize() error = nil, want a decode error for a malformed body")
	}
}

func TestXGSampleSizeRespectsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"samples": 1}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.XGSampleSize(ctx, "team-a")
	if err == nil {
		t.Fatal("XGSampleSize() error = nil, want an error for an already-cancelled context")
	}
}
