package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"title": {Type: TypeString, Description: "Headline"},
		},
		Required: []string{"title"},
	}
}

func TestSchemaJSONSchemaLowercasesTypes(t *testing.T) {
	js := testSchema().JSONSchema()
	if js["type"] != "object" {
		t.Fatalf("expected lowercase object type, got %v", js["type"])
	}
	props := js["properties"].(map[string]any)
	title := props["title"].(map[string]any)
	if title["type"] != "string" || title["description"] != "Headline" {
		t.Fatalf("unexpected property schema: %v", title)
	}
	if js["additionalProperties"] != false {
		t.Fatalf("expected closed object schema")
	}
	var nilSchema *Schema
	if nilSchema.JSONSchema() != nil {
		t.Fatalf("nil schema should convert to nil")
	}
}

func TestOllamaGeneratorPassesSchemaAsFormat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{\"title\":\"x\"}"}}`))
	}))
	defer srv.Close()

	g := NewOllamaGenerator(NewOllamaClient(srv.URL, time.Second), "llama3")
	text, err := g.GenerateJSON(context.Background(), "sys", "user", testSchema())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != `{"title":"x"}` {
		t.Fatalf("unexpected text: %q", text)
	}
	format, ok := got["format"].(map[string]any)
	if !ok || format["type"] != "object" {
		t.Fatalf("expected json schema format, got %v", got["format"])
	}
	if got["stream"] != false {
		t.Fatalf("expected non-streaming request")
	}
}

func TestOllamaGeneratorChatMapsModelRole(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"reply"}}`))
	}))
	defer srv.Close()

	g := NewOllamaGenerator(NewOllamaClient(srv.URL, time.Second), "llama3")
	if _, err := g.Chat(context.Background(), "sys", []Message{{Role: RoleModel, Content: "hi"}, {Role: RoleUser, Content: "q"}}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(got.Messages) != 3 || got.Messages[0].Role != "system" || got.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
	if got.Format != nil {
		t.Fatalf("chat must not constrain format, got %v", got.Format)
	}
}

func TestOllamaGeneratorRequiresModel(t *testing.T) {
	g := NewOllamaGenerator(NewOllamaClient("http://127.0.0.1:1", time.Second), " ")
	if _, err := g.Chat(context.Background(), "", []Message{{Role: RoleUser, Content: "q"}}); err == nil {
		t.Fatalf("expected missing model to fail")
	}
}

func TestOpenAICompatGeneratorJSONSchemaAndAuth(t *testing.T) {
	var got oaiChatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" {\"title\":\"x\"} "}}]}`))
	}))
	defer srv.Close()

	g := NewOpenAICompatGenerator(srv.URL+"/v1/", "secret", "gpt-test", time.Second)
	text, err := g.GenerateJSON(context.Background(), "sys", "user", testSchema())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != `{"title":"x"}` {
		t.Fatalf("expected trimmed content, got %q", text)
	}
	if auth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_schema" || got.ResponseFormat.JSONSchema.Name != "daily_thought" {
		t.Fatalf("unexpected response format: %+v", got.ResponseFormat)
	}
}

func TestOpenAICompatGeneratorChatRoles(t *testing.T) {
	var got oaiChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	g := NewOpenAICompatGenerator(srv.URL, "", "gpt-test", 0)
	if _, err := g.Chat(context.Background(), "sys", []Message{{Role: RoleUser, Content: "a"}, {Role: RoleModel, Content: "b"}}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(got.Messages) != 3 || got.Messages[2].Role != "assistant" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
	if got.ResponseFormat != nil {
		t.Fatalf("chat must not set response format")
	}
}

func TestOpenAICompatGeneratorErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad schema","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	g := NewOpenAICompatGenerator(srv.URL, "", "gpt-test", time.Second)
	if _, err := g.GenerateJSON(context.Background(), "", "u", nil); err == nil || err.Error() != "openai-compat api error: bad schema" {
		t.Fatalf("unexpected error: %v", err)
	}
}
