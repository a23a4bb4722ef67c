package endpoint

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientFetchesSegmentAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tts" || r.URL.Query().Get("seg") != "3" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFFdata"))
	}))
	defer server.Close()

	data, err := NewClient(server.URL+"/").Fetch(context.Background(), 3)
	if err != nil {
		t.Fatalf("expected fetch to succeed, got %v", err)
	}
	if !bytes.Equal(data, []byte("RIFFdata")) {
		t.Fatalf("expected body to be returned, got %q", data)
	}
}

func TestClientFetchReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "synthesis failed", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Fetch(context.Background(), 0)
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}
}
