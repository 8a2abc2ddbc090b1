package processor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"dictate/mode"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type recorder struct {
	mu    sync.Mutex
	req   chatRequest
	calls int
}

func (r *recorder) snapshot() (chatRequest, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.req, r.calls
}

func chatServer(t *testing.T, status int, content string, rec *recorder) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.calls++
		got := &rec.req
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, got); err != nil {
			t.Errorf("request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   got.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProcess(t *testing.T) {
	tests := []struct {
		name      string
		mode      mode.Mode
		text      string
		reply     string
		want      string
		wantCalls int
	}{
		{name: "formal", mode: mode.NewFormal(), text: "buy milk", reply: " Please purchase milk. \n", want: "Please purchase milk.", wantCalls: 1},
		{name: "translate", mode: mode.NewTranslate("German"), text: "good morning", reply: "Guten Morgen", want: "Guten Morgen", wantCalls: 1},
		{name: "custom", mode: mode.NewCustom("Pirate", "Talk like a pirate."), text: "hello", reply: "Ahoy", want: "Ahoy", wantCalls: 1},
		{name: "normal skips the call", mode: mode.NewNormal(), text: "as is", want: "as is"},
		{name: "blank text skips the call", mode: mode.NewFormal(), text: "  ", want: "  "},
		{name: "empty answer keeps input", mode: mode.NewSummarize(), text: "long text", reply: "   ", want: "long text", wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec recorder
			srv := chatServer(t, http.StatusOK, tt.reply, &rec)
			c, err := New("groq", "key", WithBaseURL(srv.URL+"/v1"))
			if err != nil {
				t.Fatal(err)
			}
			got, err := c.Process(context.Background(), tt.text, tt.mode)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if got != tt.want {
				t.Errorf("Process = %q, want %q", got, tt.want)
			}
			req, calls := rec.snapshot()
			if calls != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if calls == 0 {
				return
			}
			if req.Model != GroqModel || req.Temperature != Temperature || req.MaxTokens != MaxTokens {
				t.Errorf("request = %+v", req)
			}
			if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != tt.text {
				t.Errorf("messages = %+v", req.Messages)
			}
			if req.Messages[0].Content != tt.mode.SystemPrompt() {
				t.Errorf("system prompt = %q", req.Messages[0].Content)
			}
		})
	}
}

func TestProcessAPIError(t *testing.T) {
	var rec recorder
	srv := chatServer(t, http.StatusUnauthorized, "", &rec)
	c, err := New("openai", "key", WithBaseURL(srv.URL+"/v1/"), WithModel("gpt-test"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Process(context.Background(), "x", mode.NewFormal()); err == nil {
		t.Fatal("expected error")
	}
	req, calls := rec.snapshot()
	if calls != 1 {
		t.Errorf("calls = %d, retries should be off", calls)
	}
	if req.Model != "gpt-test" {
		t.Errorf("model = %q", req.Model)
	}
}

func TestNew(t *testing.T) {
	if _, err := New("groq", ""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("empty key: %v", err)
	}
	if _, err := New("anthropic", "k"); err == nil {
		t.Error("unknown provider accepted")
	}
	c, err := New("openai", "k")
	if err != nil || c.Model() != OpenAIModel {
		t.Errorf("openai client = %v, %v", c, err)
	}
}

func TestFake(t *testing.T) {
	f := NewFake()
	f.Reply("Formal", "Please purchase milk.")
	f.Fail("Summarize", errors.New("boom"))

	got, err := f.Process(context.Background(), "buy milk", mode.NewFormal())
	if err != nil || got != "Please purchase milk." {
		t.Errorf("formal = %q, %v", got, err)
	}
	got, _ = f.Process(context.Background(), "buy milk", mode.NewStructure())
	if got != "[Structure] buy milk" {
		t.Errorf("default reply = %q", got)
	}
	if _, err := f.Process(context.Background(), "x", mode.NewSummarize()); err == nil {
		t.Error("expected failure")
	}

	f.Hold("Formal")
	done := make(chan error, 1)
	go func() {
		_, err := f.Process(context.Background(), "x", mode.NewFormal())
		done <- err
	}()
	select {
	case <-done:
		t.Fatal("held call returned")
	case <-time.After(20 * time.Millisecond):
	}
	f.Release("Formal")
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("released call did not return")
	}
	if n := len(f.Calls()); n != 4 {
		t.Errorf("calls = %d", n)
	}
}
