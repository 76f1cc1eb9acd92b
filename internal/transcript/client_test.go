package transcript

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract-transcript" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.VideoID != "abc123" {
			t.Errorf("unexpected video id %q", req.VideoID)
		}
		json.NewEncoder(w).Encode(extractResponse{
			Success: true,
			Segments: []Segment{
				{Text: "hello world", Start: 0, Duration: 2.5},
				{Text: "second line", Start: 2.5, Duration: 3},
			},
			Language: "en",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	segments, language, err := client.Extract(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[1].Start != 2.5 {
		t.Fatalf("segment start mismatch: %v", segments[1].Start)
	}
	if language != "en" {
		t.Fatalf("expected language en, got %q", language)
	}
}

func TestExtractServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(extractResponse{
			Success: false,
			Error:   "Transcripts are disabled for this video",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, _, err := client.Extract(context.Background(), "abc123")
	if err == nil {
		t.Fatal("expected error for unsuccessful response")
	}
}

func TestExtractEmptySegments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(extractResponse{Success: true, Segments: nil})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, _, err := client.Extract(context.Background(), "abc123")
	if err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

func TestIsHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(healthResponse{Status: "healthy"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	healthy, err := client.IsHealthy(context.Background())
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if !healthy {
		t.Fatal("expected healthy service")
	}
}
