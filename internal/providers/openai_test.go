package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func completionServer(t *testing.T, reply string, capture *openAIRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": reply}},
			},
		})
	}))
}

func TestCompleteSendsKnobsAndParsesReply(t *testing.T) {
	var captured openAIRequest
	srv := completionServer(t, "hello there", &captured)
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "gpt-4o-mini")
	got, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
		},
		Temperature:      1.25,
		TopP:             1,
		FrequencyPenalty: 1.18,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello there" {
		t.Errorf("reply = %q", got)
	}

	if captured.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", captured.Model)
	}
	if captured.MaxTokens != defaultMaxTokens {
		t.Errorf("max_tokens = %d, want default %d", captured.MaxTokens, defaultMaxTokens)
	}
	if captured.Temperature != 1.25 || captured.TopP != 1 || captured.FrequencyPenalty != 1.18 || captured.PresencePenalty != 0 {
		t.Errorf("knobs = %+v", captured)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", captured.Messages)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "m")
	if _, err := p.Complete(context.Background(), CompletionRequest{}); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "m")
	p.retryConfig = RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	got, err := p.Complete(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "ok" || calls.Load() != 2 {
		t.Errorf("reply = %q after %d calls", got, calls.Load())
	}
}

func TestCompleteDoesNotRetryAuthErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "m")
	p.retryConfig = RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	if _, err := p.Complete(context.Background(), CompletionRequest{}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("unauthorized request retried %d times", calls.Load()-1)
	}
}

func TestRuntimeAPIBaseAndModelSwitch(t *testing.T) {
	srv := completionServer(t, "moved", nil)
	defer srv.Close()

	p := NewOpenAIProvider("test-key", "https://unreachable.invalid", "m1")
	p.SetAPIBase(srv.URL + "/")
	p.SetModel("m2")

	if p.APIBase() != srv.URL {
		t.Errorf("APIBase = %q, trailing slash should be trimmed", p.APIBase())
	}
	if p.Model() != "m2" {
		t.Errorf("Model = %q", p.Model())
	}
	if _, err := p.Complete(context.Background(), CompletionRequest{}); err != nil {
		t.Fatalf("Complete after SetAPIBase: %v", err)
	}
}
