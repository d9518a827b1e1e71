package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"botforge-server/src/configs"
)

// deepseekClient calls the alternate reasoning provider's chat-completion
// endpoint directly with bearer auth.
type deepseekClient struct {
	cfg  configs.DeepSeekConfig
	http *http.Client
}

func newDeepSeekClient(cfg configs.DeepSeekConfig) *deepseekClient {
	return &deepseekClient{cfg: cfg, http: http.DefaultClient}
}

func (c *deepseekClient) Complete(ctx context.Context, model string, messages []Message, temperature float32) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("deepseek api key is not configured")
	}

	body, err := json.Marshal(map[string]interface{}{
		"model":       model,
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
		return "", &ProviderError{Provider: "deepseek", StatusCode: resp.StatusCode, Body: string(payload)}
	}

	var out completionResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decode deepseek response: %w", err)
	}
	return replyFrom(out), nil
}
