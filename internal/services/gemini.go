package services

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/jwebster45206/lingua-quest/pkg/chat"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiService implements LLMService for Google Gemini
type GeminiService struct {
	client    *genai.Client
	modelName string
	logger    *slog.Logger
}

// GeminiOptions carries optional client settings
type GeminiOptions struct {
	// BaseURL overrides the API endpoint, such as a test server
	BaseURL string
}

// NewGeminiService creates a Gemini client for the Gemini Developer API
func NewGeminiService(ctx context.Context, apiKey string, modelName string, logger *slog.Logger, opts GeminiOptions) (*GeminiService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiService{
		client:    client,
		modelName: modelName,
		logger:    logger,
	}, nil
}

func (g *GeminiService) InitModel(ctx context.Context, modelName string) error {
	if modelName != "" {
		g.modelName = modelName
	}
	return nil
}

// Chat sends the system prompt as a system instruction and the log as
// alternating user/model contents. JSON output is requested natively.
func (g *GeminiService) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	systemPrompt, conversation := splitChatMessages(messages)

	contents := make([]*genai.Content, 0, len(conversation))
	for _, msg := range conversation {
		var role genai.Role = genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	temperature := float32(DefaultTemperature)
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content failed: %w", err)
	}

	g.logger.Debug("Gemini response received", "model", g.modelName, "candidates", len(resp.Candidates))

	return &chat.ChatResponse{
		Message: resp.Text(),
	}, nil
}
