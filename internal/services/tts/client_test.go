package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"cinecast/internal/services"
	"cinecast/internal/voice"
)

func TestRenderWritesOutput(t *testing.T) {
	wantAudio := []byte("RIFFfakewavdata")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/render" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload renderPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.Text != "Hello." || payload.Language != "en" {
			t.Errorf("payload wrong: %+v", payload)
		}
		if payload.Voice.Mode != voice.ModeClone {
			t.Errorf("voice spec lost: %+v", payload.Voice)
		}
		w.Write(wantAudio)
	}))
	defer server.Close()

	out := filepath.Join(t.TempDir(), "temp_chunk_0.wav")
	client := NewClient(Config{BaseURL: server.URL, Language: "en"})
	err := client.Render(context.Background(), Request{
		Text:       "Hello.",
		Voice:      voice.Spec{Mode: voice.ModeClone, RefAudio: "a.wav", RefText: "t"},
		Seed:       42,
		OutputPath: out,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(got) != string(wantAudio) {
		t.Fatal("output payload differs")
	}
}

func TestRenderRejectsEmptyText(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost:1"})
	err := client.Render(context.Background(), Request{Text: "   "})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRenderEngineFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model load failed", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	err := client.Render(context.Background(), Request{
		Text:       "Hello.",
		OutputPath: filepath.Join(t.TempDir(), "out.wav"),
	})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestRenderBatchPartialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload batchPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if len(payload.Lines) != 3 || payload.Seed != 7 {
			t.Errorf("batch payload wrong: %+v", payload)
		}
		resp := map[string]any{
			"results": []map[string]any{
				{"index": 0, "audio_b64": base64.StdEncoding.EncodeToString([]byte("wav0"))},
				{"index": 1, "error": "synthesis diverged"},
				{"index": 2, "audio_b64": base64.StdEncoding.EncodeToString([]byte("wav2"))},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	dir := t.TempDir()
	reqs := make([]Request, 3)
	for i := range reqs {
		reqs[i] = Request{
			Text:       fmt.Sprintf("line %d.", i),
			OutputPath: filepath.Join(dir, fmt.Sprintf("temp_batch_%d.wav", i)),
		}
	}

	client := NewClient(Config{BaseURL: server.URL})
	results, err := client.RenderBatch(context.Background(), reqs, 7)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if results[0] != nil || results[2] != nil {
		t.Fatalf("expected lines 0 and 2 to succeed: %v", results)
	}
	if !errors.Is(results[1], services.ErrExternalTool) {
		t.Fatalf("expected line 1 failure, got %v", results[1])
	}
	for _, i := range []int{0, 2} {
		if _, statErr := os.Stat(reqs[i].OutputPath); statErr != nil {
			t.Errorf("line %d output missing: %v", i, statErr)
		}
	}
	if _, statErr := os.Stat(reqs[1].OutputPath); !os.IsNotExist(statErr) {
		t.Error("failed line must not leave an output file")
	}
}

func TestRenderBatchMissingResultSlots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 0, "audio_b64": base64.StdEncoding.EncodeToString([]byte("wav0"))},
			},
		})
	}))
	defer server.Close()

	dir := t.TempDir()
	reqs := []Request{
		{Text: "a.", OutputPath: filepath.Join(dir, "0.wav")},
		{Text: "b.", OutputPath: filepath.Join(dir, "1.wav")},
	}
	client := NewClient(Config{BaseURL: server.URL})
	results, err := client.RenderBatch(context.Background(), reqs, 1)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if results[0] != nil {
		t.Fatalf("line 0 should succeed: %v", results[0])
	}
	if results[1] == nil {
		t.Fatal("missing result slot must surface as a failure")
	}
}

func TestRenderBatchTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.RenderBatch(context.Background(), []Request{{Text: "a."}}, 1)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected whole-call failure, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}
