package llm

import (
	"context"
	"fmt"

	"botforge-server/src/configs"

	openai "github.com/sashabaranov/go-openai"
)

// openaiClient is the primary provider path, going through the SDK.
type openaiClient struct {
	api *openai.Client
}

func newOpenAIClient(cfg configs.OpenAIConfig) *openaiClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &openaiClient{api: openai.NewClientWithConfig(clientCfg)}
}

func toSDKMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{Role: m.Role}
		if len(m.Parts) > 0 {
			for _, p := range m.Parts {
				part := openai.ChatMessagePart{Type: openai.ChatMessagePartType(p.Type)}
				if p.Type == "text" {
					part.Text = p.Text
				} else if p.ImageURL != nil {
					part.ImageURL = &openai.ChatMessageImageURL{URL: p.ImageURL.URL}
				}
				msg.MultiContent = append(msg.MultiContent, part)
			}
		} else {
			msg.Content = m.Content
		}
		out = append(out, msg)
	}
	return out
}

func (c *openaiClient) Complete(ctx context.Context, model string, messages []Message, temperature float32) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toSDKMessages(messages),
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
