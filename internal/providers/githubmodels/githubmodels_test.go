package githubmodels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linkenthegreat/docex/internal/providers"
)

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func TestInvokeSendsChatCompletion(t *testing.T) {
	var gotReq chatRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("path = %q, want /chat/completions", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(chatReply(`{"items":[{"name":"Alice"}],"confidence":0.95}`)))
	}))
	defer srv.Close()

	c := New(Options{Endpoint: srv.URL, Token: "tok-123"})
	result, err := c.Invoke(context.Background(), providers.Request{
		Document: "notes",
		Model:    ModelDeepSeek,
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotReq.Model != ModelDeepSeek {
		t.Fatalf("model = %q, want %s", gotReq.Model, ModelDeepSeek)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_object" {
		t.Fatalf("response_format = %+v, want json_object", gotReq.ResponseFormat)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", gotReq.Messages)
	}
	if result.OutputChars == 0 {
		t.Fatalf("output chars not counted")
	}
}

func TestInvokeWithoutTokenFailsFast(t *testing.T) {
	c := New(Options{Endpoint: "http://127.0.0.1:0"})
	if _, err := c.Invoke(context.Background(), providers.Request{Document: "doc"}); err == nil {
		t.Fatalf("expected error without token")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error without token")
	}
}

func TestInvokeNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := New(Options{Endpoint: srv.URL, Token: "tok"})
	if _, err := c.Invoke(context.Background(), providers.Request{Document: "doc"}); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestPingExercisesAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Fatalf("path = %q, want /models", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	good := New(Options{Endpoint: srv.URL, Token: "tok"})
	if err := good.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	bad := New(Options{Endpoint: srv.URL, Token: "wrong"})
	if err := bad.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping failure on bad token")
	}
}

func TestCostScalesWithVolume(t *testing.T) {
	c := New(Options{Token: "tok"})

	// 1000 chars in, 1000 chars out at the gpt-4o rate.
	if got, want := c.Cost(ModelGPT4o, 1000, 1000), 0.002+0.006; got != want {
		t.Fatalf("gpt-4o cost = %v, want %v", got, want)
	}
	if got, want := c.Cost(ModelDeepSeek, 2000, 0), 0.001; got != want {
		t.Fatalf("deepseek cost = %v, want %v", got, want)
	}
	// Unknown models price at the most expensive rate, never free.
	if got := c.Cost("mystery-model", 1000, 0); got != 0.002 {
		t.Fatalf("unknown model cost = %v, want gpt-4o input rate", got)
	}
}
