// Package transcribe turns each clip's audio artifact into text tagged with
// the clip's end time. Clips are independent: one failing clip never aborts
// its siblings.
package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-audio/wav"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/interview-coach/assess-pipeline/errs"
	"github.com/interview-coach/assess-pipeline/media"
)

// Recognizer is a speech-to-text model.
type Recognizer interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

type Transcriber struct {
	rec         Recognizer
	concurrency int
}

func New(rec Recognizer, concurrency int) *Transcriber {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Transcriber{rec: rec, concurrency: concurrency}
}

// Failure records a clip whose transcription failed.
type Failure struct {
	Index   int     `json:"index"`
	End     float64 `json:"end_time"`
	Message string  `json:"error"`
	Err     error   `json:"-"`
}

// Result is the partial transcript of a run plus the clips that failed.
type Result struct {
	Transcript Transcript `json:"transcript"`
	Failures   []Failure  `json:"failures,omitempty"`
}

// Clip transcribes a single clip.
func (t *Transcriber) Clip(ctx context.Context, c media.Clip) (Entry, error) {
	dur, err := checkAudio(c.AudioPath)
	if err != nil {
		return Entry{}, errs.Clip(errs.KindTranscription, "transcribe", c.Index, err)
	}

	start := time.Now()
	text, err := t.rec.Transcribe(ctx, c.AudioPath)
	if err != nil {
		return Entry{}, errs.Clip(errs.KindTranscription, "transcribe", c.Index, err)
	}
	log.WithFields(log.Fields{
		"clip":    c.Index,
		"end":     c.End,
		"audio":   dur,
		"elapsed": time.Since(start),
	}).Debug("clip transcribed")

	return Entry{Index: c.Index, End: c.End, Text: strings.TrimSpace(text)}, nil
}

// All transcribes every clip, at most t.concurrency at a time. The returned
// transcript keeps clip order and omits failed clips.
func (t *Transcriber) All(ctx context.Context, clips []media.Clip) Result {
	entries := make([]*Entry, len(clips))
	failures := make([]error, len(clips))

	var g errgroup.Group
	g.SetLimit(t.concurrency)
	for i, c := range clips {
		g.Go(func() error {
			e, err := t.Clip(ctx, c)
			if err != nil {
				failures[i] = err
				return nil
			}
			entries[i] = &e
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	for i := range clips {
		if failures[i] != nil {
			log.WithError(failures[i]).WithField("clip", clips[i].Index).Warn("clip transcription failed")
			res.Failures = append(res.Failures, Failure{
				Index:   clips[i].Index,
				End:     clips[i].End,
				Message: failures[i].Error(),
				Err:     failures[i],
			})
			continue
		}
		res.Transcript = append(res.Transcript, *entries[i])
	}
	return res
}

// checkAudio confirms the artifact is a readable WAV and returns its length.
func checkAudio(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return 0, fmt.Errorf("%s: not a valid WAV file", path)
	}
	dur, err := d.Duration()
	if err != nil {
		return 0, fmt.Errorf("%s: read duration: %w", path, err)
	}
	return dur, nil
}
