package orchestrator

import (
	"context"
	"time"

	"github.com/interview-coach/assess-pipeline/expression"
	"github.com/interview-coach/assess-pipeline/facs"
	"github.com/interview-coach/assess-pipeline/media"
	"github.com/interview-coach/assess-pipeline/scoring"
	"github.com/interview-coach/assess-pipeline/transcribe"
)

// EmotionDetector scores the emotions expressed by a piece of transcript text.
type EmotionDetector interface {
	Detect(ctx context.Context, text string) (map[string]float64, error)
}

// Analysis is the result of the upload half of a run: what was said and
// which facial behaviors dominated each clip.
type Analysis struct {
	RunID      string                `json:"run_id"`
	Video      string                `json:"video"`
	Clips      []media.Clip          `json:"clips"`
	Transcript transcribe.Transcript `json:"transcription"`
	Failures   []transcribe.Failure  `json:"transcription_failures,omitempty"`
	Behavior   []facs.Entry          `json:"behavior"`
	Job        *expression.Job       `json:"expression_job,omitempty"`
	// Set when the expression branch failed and the analysis is
	// transcript-only.
	ExpressionError     string `json:"expression_error,omitempty"`
	ExpressionErrorKind string `json:"expression_error_kind,omitempty"`
}

// Degraded reports whether facial behavior is missing from the analysis.
func (a *Analysis) Degraded() bool { return a.ExpressionError != "" }

type Report struct {
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Questions   []string        `json:"questions"`
	Analysis    *Analysis       `json:"analysis"`
	Score       *scoring.Result `json:"score"`
	RadarPath   string          `json:"radar_path,omitempty"`
}
