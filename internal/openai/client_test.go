package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithBaseURL("test-key", srv.URL)
}

func TestChatCompletion(t *testing.T) {
	var gotAuth string
	var gotReq Request
	c := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Hello!"}},
			},
		})
	})

	text, err := c.ChatCompletion(context.Background(), Request{
		Model:       "gpt-4o",
		Messages:    []Message{TextMessage("user", "hi")},
		MaxTokens:   500,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if text != "Hello!" {
		t.Errorf("expected Hello!, got %q", text)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o" || gotReq.MaxTokens != 500 {
		t.Errorf("request not forwarded: %+v", gotReq)
	}
}

func TestChatCompletionRetriesRateLimit(t *testing.T) {
	attempts := 0
	c := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "finally"}},
			},
		})
	})

	text, err := c.ChatCompletion(context.Background(), Request{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("ChatCompletion after retries: %v", err)
	}
	if text != "finally" {
		t.Errorf("expected finally, got %q", text)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestChatCompletionGivesUpAfterRetries(t *testing.T) {
	attempts := 0
	c := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.ChatCompletion(context.Background(), Request{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != maxRetries {
		t.Errorf("expected %d attempts, got %d", maxRetries, attempts)
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error should mention rate limiting: %v", err)
	}
}

func TestChatCompletionServerErrorNotRetried(t *testing.T) {
	attempts := 0
	c := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.ChatCompletion(context.Background(), Request{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("expected error on 500")
	}
	if attempts != 1 {
		t.Errorf("500 must not be retried, got %d attempts", attempts)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should carry response body: %v", err)
	}
}

func TestChatCompletionNoChoices(t *testing.T) {
	c := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := c.ChatCompletion(context.Background(), Request{Model: "gpt-4o"})
	if err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Errorf("expected no-choices error, got %v", err)
	}
}

func TestMultiModalMessageSerialization(t *testing.T) {
	msg := Message{
		Role: "user",
		Content: []ContentPart{
			TextPart("what does this show"),
			ImagePart("data:image/jpeg;base64,abc"),
		},
	}

	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"type":"text"`) || !strings.Contains(s, `"type":"image_url"`) {
		t.Errorf("composite content not serialized: %s", s)
	}
	if !strings.Contains(s, `"url":"data:image/jpeg;base64,abc"`) {
		t.Errorf("image url missing: %s", s)
	}
}
