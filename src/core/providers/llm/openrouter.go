package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"botforge-server/src/configs"
)

// vendorPrefixes maps well-known short model names onto the gateway's
// vendor-namespaced identifiers.
var vendorPrefixes = []struct {
	prefix string
	vendor string
}{
	{"gpt-", "openai"},
	{"o1", "openai"},
	{"o3", "openai"},
	{"claude-", "anthropic"},
	{"gemini-", "google"},
	{"llama-", "meta-llama"},
	{"mistral", "mistralai"},
	{"deepseek-", "deepseek"},
}

// GatewayModelID remaps a short model name into the gateway namespace.
// Identifiers already namespaced (containing a slash) pass through.
func GatewayModelID(model string) string {
	if strings.Contains(model, "/") {
		return model
	}
	for _, v := range vendorPrefixes {
		if strings.HasPrefix(model, v.prefix) {
			return v.vendor + "/" + model
		}
	}
	return model
}

// openrouterClient calls the gateway provider with its routing headers.
type openrouterClient struct {
	cfg  configs.OpenRouterConfig
	http *http.Client
}

func newOpenRouterClient(cfg configs.OpenRouterConfig) *openrouterClient {
	return &openrouterClient{cfg: cfg, http: http.DefaultClient}
}

func (c *openrouterClient) Complete(ctx context.Context, model string, messages []Message, temperature float32) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("openrouter api key is not configured")
	}

	body, err := json.Marshal(map[string]interface{}{
		"model":       GatewayModelID(model),
		"messages":    messages,
		"temperature": temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	// gateway routing headers
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{Provider: "openrouter", StatusCode: resp.StatusCode, Body: string(payload)}
	}

	var out completionResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decode openrouter response: %w", err)
	}
	return replyFrom(out), nil
}
