package orchestrator

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/interview-coach/assess-pipeline/expression"
	"github.com/interview-coach/assess-pipeline/media"
	"github.com/interview-coach/assess-pipeline/scoring"
	"github.com/interview-coach/assess-pipeline/transcribe"
)

func clipFiles(clips []media.Clip) []string {
	out := make([]string, 0, len(clips))
	for _, c := range clips {
		out = append(out, c.VideoPath)
	}
	return out
}

// orderByClip sorts predictions into clip order; the service may return files
// in any order. Unknown files go last in their original order.
func orderByClip(preds []expression.Prediction, clips []media.Clip) []expression.Prediction {
	index := make(map[string]int, len(clips))
	for _, c := range clips {
		index[filepath.Base(c.VideoPath)] = c.Index
	}
	rank := func(p expression.Prediction) int {
		if i, ok := index[filepath.Base(p.File)]; ok {
			return i
		}
		return len(clips)
	}
	out := append([]expression.Prediction(nil), preds...)
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}

// deriveEmotions builds one {end time: emotions} bucket per transcript entry.
// Entries the service cannot score are skipped.
func (p *Pipeline) deriveEmotions(ctx context.Context, t transcribe.Transcript) scoring.EmotionDistribution {
	out := scoring.EmotionDistribution{}
	for _, e := range t {
		if e.Text == "" {
			continue
		}
		emo, err := p.emotions.Detect(ctx, e.Text)
		if err != nil {
			log.WithError(err).WithField("end", e.End).Warn("emotion detection failed")
			continue
		}
		out = append(out, map[string]map[string]float64{
			strconv.FormatFloat(e.End, 'f', -1, 64): emo,
		})
	}
	return out
}
