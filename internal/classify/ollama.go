package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaModel is used when no model is configured for the local
// provider.
const DefaultOllamaModel = "llama3.2"

// OllamaProvider classifies through a locally running Ollama server.
type OllamaProvider struct {
	host   string
	model  string
	client *http.Client
}

// NewOllamaProvider points the provider at host, e.g.
// "http://localhost:11434". An empty model selects DefaultOllamaModel.
func NewOllamaProvider(host, model string) *OllamaProvider {
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaProvider{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(map[string]any{
		"model":  p.model,
		"prompt": prompt,
		"stream": false,
	})
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if body.Response == "" {
		return "", fmt.Errorf("ollama: empty response")
	}
	return body.Response, nil
}
