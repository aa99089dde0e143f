package ai

import (
	"context"
	"strings"
)

// GeminiGenerator wraps GeminiClient with fixed models for generation and chat.
type GeminiGenerator struct {
	client          *GeminiClient
	generationModel string
	chatModel       string
}

// NewGeminiGenerator builds a Gemini-based Provider. An empty chatModel
// reuses the generation model.
func NewGeminiGenerator(client *GeminiClient, generationModel, chatModel string) *GeminiGenerator {
	if strings.TrimSpace(chatModel) == "" {
		chatModel = generationModel
	}
	return &GeminiGenerator{client: client, generationModel: generationModel, chatModel: chatModel}
}

// GenerateJSON implements StructuredGenerator using Gemini's responseSchema.
func (g *GeminiGenerator) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, schema *Schema) (string, error) {
	return g.client.GenerateJSON(ctx, g.generationModel, systemPrompt, userPrompt, schema)
}

// Chat implements ChatGenerator using Gemini multi-turn contents.
func (g *GeminiGenerator) Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	return g.client.Chat(ctx, g.chatModel, systemPrompt, messages)
}
