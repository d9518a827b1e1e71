package embedding

import (
	"context"
	"fmt"

	"botforge-server/src/configs"

	openai "github.com/sashabaranov/go-openai"
)

// maxBatchSize bounds inputs per embedding request to keep request bodies
// small.
const maxBatchSize = 64

// Client wraps the hosted embedding API. One fixed-length vector per
// input, order-preserving. No retry: failures surface to the caller.
type Client struct {
	api   *openai.Client
	model openai.EmbeddingModel
	dims  int
}

// NewClient builds an embedding client from the provider config.
func NewClient(cfg configs.OpenAIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is not configured")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(clientCfg),
		model: openai.EmbeddingModel(cfg.EmbeddingModel),
		dims:  cfg.EmbeddingDims,
	}, nil
}

// Dimensions returns the configured output vector length.
func (c *Client) Dimensions() int {
	return c.dims
}

// EmbedText embeds a single string.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in request batches of at most maxBatchSize,
// returning one vector per input in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: c.model,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding request failed: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embedding response size mismatch: got %d for %d inputs", len(resp.Data), end-start)
		}
		for _, d := range resp.Data {
			vectors = append(vectors, d.Embedding)
		}
	}
	return vectors, nil
}
