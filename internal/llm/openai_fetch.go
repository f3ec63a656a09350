package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const openAIChatCompletionsURL = "https://api.openai.com/v1/chat/completions"

// OpenAIFetchProvider calls the OpenAI chat completions API over plain HTTP,
// without the SDK, and decodes the SSE body by hand.
type OpenAIFetchProvider struct {
	apiKey string
	model  string
	client *http.Client
}

func NewOpenAIFetchProvider(apiKey, model string) *OpenAIFetchProvider {
	return &OpenAIFetchProvider{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *OpenAIFetchProvider) Name() string {
	return fmt.Sprintf("OpenAI fetch (%s)", p.model)
}

type oaiChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChatRequest struct {
	Model       string           `json:"model"`
	Messages    []oaiChatMessage `json:"messages"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
	Stream      bool             `json:"stream"`
}

type oaiChatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (p *OpenAIFetchProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	req.SetDefaults()

	messages := []oaiChatMessage{{Role: "system", Content: req.SystemPrompt}}
	for _, msg := range req.Messages {
		messages = append(messages, oaiChatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	body, err := json.Marshal(oaiChatRequest{
		Model:       chooseModel(req.Model, p.model),
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	return startStream(ctx, func(ctx context.Context, events chan<- Event) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIChatCompletionsURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := p.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("OpenAI API request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, string(respBody))
		}

		scanner := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)

		unmarshalErrors := 0
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				break
			}

			var chunk oaiChatChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// Allow some parse errors (keepalives, partial data) but fail
				// if too many
				unmarshalErrors++
				if unmarshalErrors > 10 {
					return fmt.Errorf("too many SSE parse errors, last: %w", err)
				}
				continue
			}

			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					events <- Event{Type: EventTextDelta, Text: choice.Delta.Content}
				}
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("OpenAI streaming error: %w", err)
		}
		return nil
	}), nil
}

func chooseModel(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}
