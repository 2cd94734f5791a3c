package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"kronik/kronik/types"
	"kronik/kronik/utils/jsonutils"
	"kronik/kronik/utils/logging"

	"go.uber.org/zap"
)

var ErrFileNotFound = errors.New("file not found")

// ContentGenerator is the remote model call an Analyzer depends on.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, req GenerateRequest) (GenerateResponse, error)
}

// Analyzer turns a local video file into a validated types.Analysis.
type Analyzer struct {
	gen         ContentGenerator
	model       string
	temperature float64
	log         *zap.Logger
}

func NewAnalyzer(gen ContentGenerator, model string, temperature float64) *Analyzer {
	return &Analyzer{gen: gen, model: model, temperature: temperature, log: logging.Named("brain")}
}

func (a *Analyzer) request(video []byte) GenerateRequest {
	temperature := a.temperature
	return GenerateRequest{
		SystemInstruction: &Content{Parts: []Part{{Text: AnalyzeTikTokPrompt()}}},
		Contents: []Content{{
			Role: "user",
			Parts: []Part{
				{Text: analyzeTikTokRequest},
				{InlineData: &Blob{MimeType: "video/mp4", Data: video}},
			},
		}},
		GenerationConfig: &GenerationConfig{
			Temperature:      &temperature,
			ResponseMimeType: "application/json",
			ResponseSchema:   AnalysisSchema(),
		},
		SafetySettings: blockNone(),
	}
}

// AnalyzeVideo sends the file at path to the model. A missing file fails with
// ErrFileNotFound before any network call; a reply that does not match the
// analysis schema fails with types.ErrSchemaViolation. Nothing is retried.
func (a *Analyzer) AnalyzeVideo(ctx context.Context, path string) (types.Analysis, error) {
	defer logging.LogDuration(ctx, "analyze_video")()
	a.log.Info("starting analysis", zap.String("path", path), logging.TraceField(ctx))

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		a.log.Error("video file not found", zap.String("path", path))
		return types.Analysis{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	video, err := os.ReadFile(path)
	if err != nil {
		return types.Analysis{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	resp, err := a.gen.GenerateContent(ctx, a.model, a.request(video))
	if err != nil {
		return types.Analysis{}, fmt.Errorf("analysis of %s failed: %w", path, err)
	}
	text, err := resp.Text()
	if err != nil {
		return types.Analysis{}, fmt.Errorf("analysis of %s failed: %w", path, err)
	}
	a.log.Debug("model response", zap.String("text", text))

	analysis, err := types.ParseAnalysis([]byte(jsonutils.ExtractJSON(text)))
	if err != nil {
		a.log.Error("invalid analysis response", zap.String("path", path), zap.Error(err))
		return types.Analysis{}, err
	}
	a.log.Info("analysis complete", zap.String("path", path),
		zap.String("category", string(analysis.Category)), zap.Int("rating", analysis.Rating),
		zap.Bool("like", analysis.Like), logging.TraceField(ctx))
	return analysis, nil
}
