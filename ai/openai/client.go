package openai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/poiesic/ymj/ai"
	goopenai "github.com/sashabaranov/go-openai"
)

// ClientEmbedder implements ai.Embedder with the go-openai client. It passes
// the configured dimensions to the API, which text-embedding-3 models use to
// shorten their vectors.
type ClientEmbedder struct {
	client *goopenai.Client
	model  string
	want   int
	dims   atomic.Int64
	logger *slog.Logger
}

func newClientEmbedder(config *ai.Config) (*ClientEmbedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cfg := goopenai.DefaultConfig(config.APIKey)
	cfg.BaseURL = config.EmbeddingHost
	cfg.HTTPClient = &http.Client{Timeout: config.Timeout}

	e := &ClientEmbedder{
		client: goopenai.NewClientWithConfig(cfg),
		model:  config.EmbeddingModel,
		want:   config.Dimensions,
		logger: slog.Default().With("component", "openai-client-embedder"),
	}
	e.dims.Store(int64(config.Dimensions))
	return e, nil
}

// NewClientEmbedder creates an embedder backed by the go-openai client.
func NewClientEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newClientEmbedder(config)
}

func (e *ClientEmbedder) Model() string   { return e.model }
func (e *ClientEmbedder) Dimensions() int { return int(e.dims.Load()) }

// EmbedText generates a vector embedding for a single text string.
func (e *ClientEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in one request.
func (e *ClientEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      texts,
		Model:      goopenai.EmbeddingModel(e.model),
		Dimensions: e.want,
	})
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ai.ErrEmptyEmbedding, len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		if out[item.Index] != nil {
			return nil, fmt.Errorf("duplicate embedding index %d", item.Index)
		}
		if err := ai.CheckDimensions(item.Embedding, e.want); err != nil {
			return nil, err
		}
		out[item.Index] = item.Embedding
	}
	for i, vec := range out {
		if vec == nil {
			return nil, fmt.Errorf("%w: no vector for text %d", ai.ErrEmptyEmbedding, i)
		}
	}
	e.dims.Store(int64(len(out[0])))
	return out, nil
}
