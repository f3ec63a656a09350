package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/mlpierce22/triplechat/internal/chat"
)

// GeminiProvider streams generations through the Gemini API. The client is
// created per stream because it binds to the request context.
type GeminiProvider struct {
	apiKey string
	model  string
}

func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	return &GeminiProvider{
		apiKey: apiKey,
		model:  model,
	}
}

func (p *GeminiProvider) Name() string {
	return fmt.Sprintf("Gemini (%s)", p.model)
}

func (p *GeminiProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	req.SetDefaults()
	model := chooseModel(req.Model, p.model)

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if msg.Role == chat.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens:   int32(req.MaxTokens),
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}

	return startStream(ctx, func(ctx context.Context, events chan<- Event) error {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  p.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return fmt.Errorf("failed to create Gemini client: %w", err)
		}

		for resp, err := range client.Models.GenerateContentStream(ctx, model, contents, cfg) {
			if err != nil {
				return fmt.Errorf("gemini streaming error: %w", err)
			}
			if text := resp.Text(); text != "" {
				events <- Event{Type: EventTextDelta, Text: text}
			}
		}
		return nil
	}), nil
}
