// Package scoring fuses the emotional, facial and answer-quality signals of an
// interview into one composite score plus per-question feedback.
package scoring

import (
	"context"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/interview-coach/assess-pipeline/errs"
	"github.com/interview-coach/assess-pipeline/transcribe"
)

const (
	MaxEmotional = 40.0
	MaxFacial    = 20.0

	DefaultParseScore   = 30.0
	DefaultFailureScore = 20.0
)

// ChatModel is a chat-completion language model.
type ChatModel interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Mode string

const (
	// ModeAverage scores every question and averages the parsed scores.
	ModeAverage Mode = "average"
	// ModeNarrative only collects per-question feedback.
	ModeNarrative Mode = "narrative"
	// ModeCombined runs the scoring pass for the quality component and the
	// narrative pass for feedback.
	ModeCombined Mode = "combined"
)

type Options struct {
	Mode              Mode
	ParseDefault      float64
	FailureDefault    float64
	RequestsPerSecond float64 // 0 means unlimited
}

func DefaultOptions() Options {
	return Options{Mode: ModeCombined, ParseDefault: DefaultParseScore, FailureDefault: DefaultFailureScore}
}

type Input struct {
	Transcript transcribe.Transcript `json:"transcript"`
	// Length overrides the number of transcript entries paired with questions.
	Length    int                 `json:"length,omitempty"`
	Questions []string            `json:"questions"`
	Behaviors Behaviors           `json:"behaviors"`
	Emotions  EmotionDistribution `json:"emotions"`
}

type QuestionScore struct {
	Question string  `json:"question"`
	Score    float64 `json:"score"`
	Parsed   bool    `json:"parsed"`
	Reply    string  `json:"reply"`
}

type Result struct {
	Emotional      float64         `json:"emotional"`
	Facial         float64         `json:"facial"`
	Quality        float64         `json:"quality"`
	QualityScored  bool            `json:"quality_scored"`
	Total          float64         `json:"total"`
	QuestionScores []QuestionScore `json:"question_scores,omitempty"`
	Feedback       []string        `json:"feedback"`
}

type Scorer struct {
	chat    ChatModel
	weights *Weights
	opts    Options
	limiter *rate.Limiter
}

func New(chat ChatModel, w *Weights, opts Options) *Scorer {
	if opts.Mode == "" {
		opts.Mode = ModeCombined
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Scorer{chat: chat, weights: w, opts: opts, limiter: rate.NewLimiter(limit, 1)}
}

// Score computes the composite score of in.
func (s *Scorer) Score(ctx context.Context, in Input) (*Result, error) {
	if len(in.Questions) == 0 {
		return nil, errs.Errorf(errs.KindInput, "scoring.score", "no questions")
	}
	if err := in.Transcript.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		Emotional: clamp(s.weights.Emotional(in.Emotions), MaxEmotional),
		Facial:    clamp(s.weights.Facial(in.Behaviors), MaxFacial),
	}

	n := pairs(in)
	data := newPromptData(in)
	l := log.WithFields(log.Fields{"mode": s.opts.Mode, "questions": n})

	if s.opts.Mode == ModeAverage || s.opts.Mode == ModeCombined {
		res.QualityScored = true
		res.Quality, res.QuestionScores = s.quality(ctx, in.Questions[:n], data)
		if s.opts.Mode == ModeAverage {
			for _, q := range res.QuestionScores {
				res.Feedback = append(res.Feedback, q.Reply)
			}
		}
	}
	if s.opts.Mode == ModeNarrative || s.opts.Mode == ModeCombined {
		fb, err := s.narrative(ctx, in.Questions[:n], data)
		if err != nil {
			return nil, err
		}
		res.Feedback = fb
	}
	if res.Feedback == nil {
		res.Feedback = []string{}
	}

	res.Total = res.Emotional + res.Facial + res.Quality
	l.WithFields(log.Fields{
		"emotional": res.Emotional,
		"facial":    res.Facial,
		"quality":   res.Quality,
		"total":     res.Total,
	}).Info("interview scored")
	return res, nil
}

// quality runs the scoring pass. Unparseable replies score ParseDefault; a
// failed model call abandons the pass and the whole component falls back to
// FailureDefault.
func (s *Scorer) quality(ctx context.Context, questions []string, data promptData) (float64, []QuestionScore) {
	scores := make([]QuestionScore, 0, len(questions))
	for i, q := range questions {
		reply, err := s.complete(ctx, scoringSystem, data.scoring(q))
		if err != nil {
			log.WithError(err).WithField("question", i).Warn("quality scoring failed, using fallback")
			return s.opts.FailureDefault, scores
		}
		qs := QuestionScore{Question: q, Reply: reply}
		if v, err := ParseScore(reply); err != nil {
			log.WithField("question", i).Debug("no score in reply, using default")
			qs.Score = s.opts.ParseDefault
		} else {
			qs.Score, qs.Parsed = v, true
		}
		scores = append(scores, qs)
	}
	if len(scores) == 0 {
		return 0, scores
	}
	sum := 0.0
	for _, qs := range scores {
		sum += qs.Score
	}
	return sum / float64(len(scores)), scores
}

func (s *Scorer) narrative(ctx context.Context, questions []string, data promptData) ([]string, error) {
	out := make([]string, 0, len(questions))
	for i, q := range questions {
		reply, err := s.complete(ctx, narrativeSystem, data.narrative(q))
		if err != nil {
			return nil, errs.Clip(errs.KindCompletion, "scoring.feedback", i, err)
		}
		out = append(out, reply)
	}
	return out, nil
}

func (s *Scorer) complete(ctx context.Context, system, user string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return s.chat.Complete(ctx, system, user)
}

// pairs is the number of questions matched against the transcript.
func pairs(in Input) int {
	length := in.Length
	if length <= 0 {
		length = len(in.Transcript)
	}
	return min(len(in.Questions), length)
}

// ParseScore returns the first whitespace-separated token of reply made only
// of ASCII digits.
func ParseScore(reply string) (float64, error) {
	for _, tok := range strings.Fields(reply) {
		if !allDigits(tok) {
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return 0, errs.E(errs.KindParse, "scoring.parse", err)
		}
		return v, nil
	}
	return 0, errs.Errorf(errs.KindParse, "scoring.parse", "no numeric token in reply")
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func clamp(v, hi float64) float64 {
	return max(0, min(v, hi))
}
