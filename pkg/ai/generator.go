package ai

import "context"

// Roles used in chat histories. Providers translate them to their own vocabulary.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one turn of a chat history.
type Message struct {
	Role    string
	Content string
}

// StructuredGenerator produces JSON text constrained by a response schema.
type StructuredGenerator interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, schema *Schema) (string, error)
}

// ChatGenerator continues a multi-turn conversation under a system prompt.
// The last message is the one being answered.
type ChatGenerator interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error)
}

// Provider is implemented by every LLM backend (Gemini, Ollama, OpenAI-compatible).
type Provider interface {
	StructuredGenerator
	ChatGenerator
}
