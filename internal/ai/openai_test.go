package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/louisbranch/crowdplay/internal/merge"
)

func TestInvokeSendsRequestAndExtractsOutputText(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"output_text":"You open the door."}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{
		ResponsesURL: server.URL,
		APIKey:       "secret",
	})

	result, err := client.Invoke(context.Background(), merge.InvokeInput{
		Model:           "gpt-test",
		System:          "merge suggestions",
		Prompt:          "1. open the door",
		MaxOutputTokens: 256,
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.OutputText != "You open the door." {
		t.Fatalf("expected extracted output, got %q", result.OutputText)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotBody["model"] != "gpt-test" {
		t.Fatalf("expected model in body, got %v", gotBody["model"])
	}
	if gotBody["instructions"] != "merge suggestions" {
		t.Fatalf("expected instructions in body, got %v", gotBody["instructions"])
	}
	if gotBody["max_output_tokens"] != float64(256) {
		t.Fatalf("expected token budget in body, got %v", gotBody["max_output_tokens"])
	}
}

func TestInvokeFallsBackToOutputItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := `{"output":[{"content":[{"type":"output_text","text":"You search the room."}]}]}`
		if _, err := w.Write([]byte(payload)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{ResponsesURL: server.URL, APIKey: "secret"})
	result, err := client.Invoke(context.Background(), merge.InvokeInput{Model: "gpt-test", Prompt: "p"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.OutputText != "You search the room." {
		t.Fatalf("expected nested output text, got %q", result.OutputText)
	}
}

func TestInvokeSurfacesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(Config{ResponsesURL: server.URL, APIKey: "secret"})
	_, err := client.Invoke(context.Background(), merge.InvokeInput{Model: "gpt-test", Prompt: "p"})
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status in error, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected body excerpt in error, got %v", err)
	}
}

func TestInvokeValidatesInputs(t *testing.T) {
	client := NewClient(Config{APIKey: ""})
	if _, err := client.Invoke(context.Background(), merge.InvokeInput{Model: "m", Prompt: "p"}); err == nil {
		t.Fatal("expected missing api key error")
	}

	client = NewClient(Config{APIKey: "secret"})
	if _, err := client.Invoke(context.Background(), merge.InvokeInput{Prompt: "p"}); err == nil {
		t.Fatal("expected missing model error")
	}
	if _, err := client.Invoke(context.Background(), merge.InvokeInput{Model: "m"}); err == nil {
		t.Fatal("expected missing prompt error")
	}
}

func TestInvokeRejectsEmptyOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte(`{"output":[]}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{ResponsesURL: server.URL, APIKey: "secret"})
	if _, err := client.Invoke(context.Background(), merge.InvokeInput{Model: "m", Prompt: "p"}); err == nil {
		t.Fatal("expected missing output text error")
	}
}
