package llm

import (
	"context"
	"errors"
	"strings"

	"kronik/kronik/utils/logging"

	"go.uber.org/zap"
)

const DefaultEmbeddingModel = "text-embedding-004"

const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

var ErrEmptyText = errors.New("nothing to embed")

type EmbedRequest struct {
	Content  Content `json:"content"`
	TaskType string  `json:"taskType,omitempty"`
}

type EmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// EmbedContent calls {base}/models/{model}:embedContent.
func (c *GeminiClient) EmbedContent(ctx context.Context, model string, req EmbedRequest) (EmbedResponse, error) {
	defer logging.LogDuration(ctx, "gemini_embed_content")()

	var resp EmbedResponse
	if err := c.post(ctx, model, "embedContent", req, &resp); err != nil {
		return EmbedResponse{}, err
	}
	return resp, nil
}

type EmbeddingClient interface {
	EmbedContent(ctx context.Context, model string, req EmbedRequest) (EmbedResponse, error)
}

// Embedder turns analysis text and search queries into vectors.
type Embedder struct {
	client EmbeddingClient
	model  string
	log    *zap.Logger
}

func NewEmbedder(client EmbeddingClient, model string) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{client: client, model: model, log: logging.Named("brain")}
}

func (e *Embedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, TaskRetrievalDocument)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, TaskRetrievalQuery)
}

func (e *Embedder) embed(ctx context.Context, text, task string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	resp, err := e.client.EmbedContent(ctx, e.model, EmbedRequest{
		Content:  Content{Parts: []Part{{Text: text}}},
		TaskType: task,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, ErrEmptyResponse
	}
	e.log.Debug("embedded text", zap.String("task", task), zap.Int("dimensions", len(resp.Embedding.Values)), logging.TraceField(ctx))
	return resp.Embedding.Values, nil
}
