// Package orchestrator runs the assessment stages for one interview video
// and decides, per error kind, whether to abort or degrade.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/interview-coach/assess-pipeline/clients"
	cfg "github.com/interview-coach/assess-pipeline/config"
	"github.com/interview-coach/assess-pipeline/errs"
	"github.com/interview-coach/assess-pipeline/expression"
	"github.com/interview-coach/assess-pipeline/facs"
	"github.com/interview-coach/assess-pipeline/media"
	"github.com/interview-coach/assess-pipeline/scoring"
	"github.com/interview-coach/assess-pipeline/transcribe"
)

// Deps are the external collaborators of a pipeline.
type Deps struct {
	Runner     media.Runner // nil runs the real ffmpeg
	Recognizer transcribe.Recognizer
	Expression expression.Service
	Clock      expression.Clock // nil uses wall time
	Chat       scoring.ChatModel
	Emotions   EmotionDetector // optional
	Weights    *scoring.Weights
}

type Pipeline struct {
	cfg  *cfg.Root
	http *clients.HTTP

	segmenter   *media.Segmenter
	transcriber *transcribe.Transcriber
	expression  *expression.Client
	aggregator  facs.Aggregator
	scorer      *scoring.Scorer
	emotions    EmotionDetector
}

// NewPipeline wires the service clients selected by c.
func NewPipeline(ctx context.Context, c *cfg.Root) (*Pipeline, error) {
	h := clients.NewHTTP()
	s := c.Services

	var d Deps
	switch s.ASR.Provider {
	case "openai":
		d.Recognizer = clients.NewOpenAI(clients.OpenAIConfig{
			BaseURL:  s.ASR.URL,
			APIKey:   s.ASR.APIKey,
			ASRModel: s.ASR.Model,
			Language: s.ASR.Language,
		})
	default:
		d.Recognizer = clients.NewWhisper(h, s.ASR.URL, s.ASR.Language)
	}

	switch s.Chat.Provider {
	case "gemini":
		g, err := clients.NewGemini(ctx, s.Chat.APIKey, s.Chat.Model)
		if err != nil {
			return nil, err
		}
		d.Chat = g
	default:
		d.Chat = clients.NewOpenAI(clients.OpenAIConfig{
			BaseURL:   s.Chat.URL,
			APIKey:    s.Chat.APIKey,
			ChatModel: s.Chat.Model,
		})
	}

	d.Expression = clients.NewHume(h, s.Expression.URL, s.Expression.APIKey)
	if s.Emotion.URL != "" {
		d.Emotions = clients.NewEmotionDetector(h, s.Emotion.URL)
	}

	w, err := scoring.LoadWeights(c.Scoring.WeightsFile)
	if err != nil {
		return nil, err
	}
	d.Weights = w

	return New(c, h, d), nil
}

// New assembles a pipeline from explicit collaborators.
func New(c *cfg.Root, h *clients.HTTP, d Deps) *Pipeline {
	seg := media.NewSegmenter(c.Media.FFmpeg, c.Media.FFprobe, c.Media.ClipLength, c.Media.SampleRate, c.Media.Channels)
	if d.Runner != nil {
		seg.WithRunner(d.Runner)
	}

	e := c.Services.Expression
	opts := []expression.Option{
		expression.WithTimeout(e.PollTimeout),
		expression.WithBackoff(expression.Backoff{Initial: e.InitialDelay, Max: e.MaxDelay}),
	}
	if d.Clock != nil {
		opts = append(opts, expression.WithClock(d.Clock))
	}

	return &Pipeline{
		cfg:         c,
		http:        h,
		segmenter:   seg,
		transcriber: transcribe.New(d.Recognizer, c.Transcribe.Concurrency),
		expression:  expression.NewClient(d.Expression, opts...),
		aggregator:  facs.New(e.FrameNormalizer, e.TopK),
		scorer: scoring.New(d.Chat, d.Weights, scoring.Options{
			Mode:              scoring.Mode(c.Scoring.Mode),
			ParseDefault:      c.Scoring.ParseDefault,
			FailureDefault:    c.Scoring.FailureDefault,
			RequestsPerSecond: c.Services.Chat.RequestsPerSecond,
		}),
		emotions: d.Emotions,
	}
}

// Analyze segments video, then transcribes the clips while the expression job
// runs. A failed expression branch leaves a transcript-only analysis; a
// media decode failure aborts the run. The run's scratch files are removed
// before Analyze returns.
func (p *Pipeline) Analyze(ctx context.Context, video string) (*Analysis, error) {
	ws, err := media.NewWorkspace(p.cfg.Media.WorkDir)
	if err != nil {
		return nil, err
	}
	defer ws.Release()

	l := log.WithFields(log.Fields{"run": ws.RunID, "video": video})
	start := time.Now()

	clips, err := p.segmenter.Segment(ctx, ws, video)
	if err != nil {
		l.WithError(err).Error("segmentation failed")
		return nil, err
	}
	a := &Analysis{RunID: ws.RunID, Video: video, Clips: clips, Behavior: []facs.Entry{}}

	var (
		g       errgroup.Group
		exprErr error
	)
	g.Go(func() error {
		res := p.transcriber.All(ctx, clips)
		a.Transcript, a.Failures = res.Transcript, res.Failures
		return nil
	})
	g.Go(func() error {
		job, preds, err := p.expression.Run(ctx, clipFiles(clips))
		a.Job = job
		if err != nil {
			exprErr = err
			return nil
		}
		a.Behavior = p.aggregator.Aggregate(orderByClip(preds, clips))
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analyze %s: %w", video, err)
	}
	if exprErr != nil {
		kind := errs.KindOf(exprErr)
		if kind.Fatal() {
			return nil, exprErr
		}
		a.ExpressionError = exprErr.Error()
		a.ExpressionErrorKind = kind.String()
		l.WithError(exprErr).Warn("expression analysis unavailable, continuing with transcript only")
	}
	if a.Transcript == nil {
		a.Transcript = transcribe.Transcript{}
	}

	l.WithFields(log.Fields{
		"clips":       len(clips),
		"transcribed": len(a.Transcript),
		"failed":      len(a.Failures),
		"behaviors":   len(a.Behavior),
		"degraded":    a.Degraded(),
		"elapsed":     time.Since(start),
	}).Info("analysis finished")
	return a, nil
}

// Score runs the composite scorer. Without a supplied emotion distribution
// and with an emotion service configured, one bucket per transcript entry is
// derived from the text.
func (p *Pipeline) Score(ctx context.Context, in scoring.Input) (*scoring.Result, error) {
	if len(in.Emotions) == 0 && p.emotions != nil {
		in.Emotions = p.deriveEmotions(ctx, in.Transcript)
	}
	return p.scorer.Score(ctx, in)
}

// Assess analyzes video and scores it against questions.
func (p *Pipeline) Assess(ctx context.Context, video string, questions []string, emotions scoring.EmotionDistribution) (*Report, error) {
	a, err := p.Analyze(ctx, video)
	if err != nil {
		return nil, err
	}
	res, err := p.Score(ctx, scoring.Input{
		Transcript: a.Transcript,
		Questions:  questions,
		Behaviors:  facs.Behaviors(a.Behavior),
		Emotions:   emotions,
	})
	if err != nil {
		return nil, err
	}

	r := &Report{
		RunID:       a.RunID,
		GeneratedAt: time.Now().UTC(),
		Questions:   questions,
		Analysis:    a,
		Score:       res,
	}
	r.RadarPath = p.radar(ctx, r)
	return r, nil
}

// radar asks the visualization service for a chart of the score components.
// Failures are logged only.
func (p *Pipeline) radar(ctx context.Context, r *Report) string {
	url := p.cfg.Services.Visualization.URL
	if url == "" {
		return ""
	}
	resp, err := p.http.GenerateRadar(ctx, url, clients.RadarReq{
		Categories:    []string{"emotional", "facial", "quality"},
		Values:        []float64{r.Score.Emotional, r.Score.Facial, r.Score.Quality},
		CandidateName: r.RunID,
		OutputDir:     p.cfg.Paths.Outputs,
	})
	if err != nil {
		log.WithError(err).WithField("run", r.RunID).Warn("radar chart failed")
		return ""
	}
	return resp.Path
}
