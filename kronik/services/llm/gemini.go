package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	httputils "kronik/kronik/utils/http"
	"kronik/kronik/utils/logging"

	"go.uber.org/zap"
)

const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

var ErrEmptyResponse = errors.New("empty response from gemini")

// GeminiClient calls the Gemini generateContent REST endpoint.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewGeminiClient(apiKey, baseURL string, timeout time.Duration) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	return &GeminiClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type Blob struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Schema is the OpenAPI subset Gemini accepts as a response schema.
type Schema struct {
	Type       string             `json:"type"`
	Required   []string           `json:"required,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Enum       []string           `json:"enum,omitempty"`
}

type GenerationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
	ResponseSchema   *Schema  `json:"responseSchema,omitempty"`
}

type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type GenerateRequest struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	SafetySettings    []SafetySetting   `json:"safetySettings,omitempty"`
}

type GenerateResponse struct {
	Candidates []struct {
		Content      Content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// Text concatenates the text parts of the first candidate.
func (r GenerateResponse) Text() (string, error) {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked the prompt: %s", r.PromptFeedback.BlockReason)
	}
	if len(r.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w (finish reason %q)", ErrEmptyResponse, r.Candidates[0].FinishReason)
	}
	return sb.String(), nil
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func normalizeModel(model string) string {
	return strings.TrimPrefix(strings.TrimSpace(model), "models/")
}

// GenerateContent sends req to model and returns the raw response.
func (c *GeminiClient) GenerateContent(ctx context.Context, model string, req GenerateRequest) (GenerateResponse, error) {
	defer logging.LogDuration(ctx, "gemini_generate_content")()

	var resp GenerateResponse
	if err := c.post(ctx, model, "generateContent", req, &resp); err != nil {
		return GenerateResponse{}, err
	}
	return resp, nil
}

// post calls {base}/models/{model}:{method}. The key travels in the
// x-goog-api-key header so it never appears in a url or a transport error.
func (c *GeminiClient) post(ctx context.Context, model, method string, req, resp interface{}) error {
	endpoint := fmt.Sprintf("%s/models/%s:%s", c.baseURL, normalizeModel(model), method)
	header := http.Header{}
	header.Set("x-goog-api-key", c.apiKey)

	err := httputils.DoJSONWithHeader(ctx, c.httpClient, http.MethodPost, endpoint, header, req, resp)
	if err == nil {
		return nil
	}
	var statusErr *httputils.StatusError
	if errors.As(err, &statusErr) {
		var apiErr geminiError
		if jsonErr := json.Unmarshal(statusErr.Body, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
			err = fmt.Errorf("gemini api error (%d %s): %s", statusErr.StatusCode, apiErr.Error.Status, apiErr.Error.Message)
		} else {
			err = fmt.Errorf("gemini api error: %w", statusErr)
		}
	}
	logging.ErrorLogger.Error("gemini request failed", zap.String("model", model), zap.String("method", method), zap.Error(err), logging.TraceField(ctx))
	return err
}
