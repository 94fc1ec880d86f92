package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func completionBody(content, finishReason string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{
				"message":       map[string]string{"content": content},
				"finish_reason": finishReason,
			},
		},
	})
	return string(body)
}

func TestCompleteReturnsContentAndFinishReason(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("missing auth header, got %q", got)
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		w.Write([]byte(completionBody(`[{"speaker":"N","text":"x.","instruct":""}]`, "stop")))
	}))
	defer server.Close()

	client := NewClient(Config{
		APIKey:  "secret",
		BaseURL: server.URL + "/v1",
		Model:   "test-model",
	})
	completion, err := client.Complete(context.Background(), "annotate", "some text")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completion.Content == "" || completion.Truncated() {
		t.Fatalf("unexpected completion: %+v", completion)
	}
}

func TestCompleteSignalsTruncation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody(`[{"speaker":"N","text":"cut`, "length")))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	completion, err := client.Complete(context.Background(), "", "text")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !completion.Truncated() {
		t.Fatalf("expected truncation signal, got %+v", completion)
	}
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(completionBody("ok", "stop")))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(Config{BaseURL: server.URL},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(time.Millisecond, 10*time.Millisecond),
	)
	completion, err := client.Complete(context.Background(), "", "text")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completion.Content != "ok" {
		t.Fatalf("content = %q", completion.Content)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
	if len(slept) != 2 {
		t.Fatalf("expected 2 sleeps, got %v", slept)
	}
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL},
		WithSleeper(func(time.Duration) {}))
	if _, err := client.Complete(context.Background(), "", "text"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("401 must not be retried, got %d calls", calls.Load())
	}
}

func TestCompleteHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completionBody("ok", "stop")))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(Config{BaseURL: server.URL},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }))
	if _, err := client.Complete(context.Background(), "", "text"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected Retry-After delay of 1s, got %v", slept)
	}
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "model not found"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	if _, err := client.Complete(context.Background(), "", "text"); err == nil {
		t.Fatal("expected api error")
	}
}
