package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jwebster45206/lingua-quest/pkg/chat"
)

func TestNewGeminiService_RequiresKey(t *testing.T) {
	if _, err := NewGeminiService(context.Background(), "", "", discardLogger(), GeminiOptions{}); err == nil {
		t.Error("Expected an error without an API key")
	}
}

func TestGeminiService_Chat(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"sceneDescription\":\"Rain.\"}"}]}}]}`))
	}))
	defer server.Close()

	service, err := NewGeminiService(context.Background(), "test-key", "gemini-test", discardLogger(), GeminiOptions{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewGeminiService failed: %v", err)
	}

	resp, err := service.Chat(context.Background(), []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: "persona"},
		{Role: chat.ChatRoleNarrator, Content: "Welcome"},
		{Role: chat.ChatRolePlayer, Content: "Hello"},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Message != `{"sceneDescription":"Rain."}` {
		t.Errorf("Unexpected reply %q", resp.Message)
	}

	contents, ok := body["contents"].([]any)
	if !ok || len(contents) != 3 {
		t.Fatalf("Expected 3 contents, got %v", body["contents"])
	}
	roles := make([]string, 0, len(contents))
	for _, c := range contents {
		roles = append(roles, c.(map[string]any)["role"].(string))
	}
	if strings.Join(roles, ",") != "user,model,user" {
		t.Errorf("Expected user,model,user roles, got %v", roles)
	}
	if _, ok := body["systemInstruction"]; !ok {
		t.Error("Expected the system prompt as systemInstruction")
	}
}

func TestGeminiService_ChatError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	service, err := NewGeminiService(context.Background(), "test-key", "gemini-test", discardLogger(), GeminiOptions{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewGeminiService failed: %v", err)
	}
	if _, err := service.Chat(context.Background(), []chat.ChatMessage{{Role: chat.ChatRolePlayer, Content: "Hi"}}); err == nil {
		t.Error("Expected an error for a 429 response")
	}
}
