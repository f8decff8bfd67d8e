package classify

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the Gemini model used when none is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// geminiTimeout bounds a single classification request.
const geminiTimeout = 30 * time.Second

// GeminiProvider classifies through the Gemini API. The client picks up
// credentials from the environment (GEMINI_API_KEY, or the Vertex AI
// variables when GOOGLE_GENAI_USE_VERTEXAI is set).
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates the Gemini client. An empty model selects
// DefaultGeminiModel.
func NewGeminiProvider(ctx context.Context, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiProvider: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, geminiTimeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return text, nil
}
