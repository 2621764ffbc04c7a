// Package facs condenses per-frame action-unit scores into the few dominant
// behaviors of each clip.
package facs

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/interview-coach/assess-pipeline/expression"
)

const (
	// DefaultNormalizer stands in for the clip frame count, which the service
	// does not report.
	DefaultNormalizer = 15.0
	DefaultTopK       = 3
)

// Entry is one dominant action unit of a clip.
type Entry struct {
	Label  string
	Score  float64
	Source string
}

// MarshalJSON encodes the entry as [label, score, source].
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Label, e.Score, e.Source})
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("facs entry: want 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &e.Label); err != nil {
		return fmt.Errorf("facs entry label: %w", err)
	}
	if err := json.Unmarshal(raw[1], &e.Score); err != nil {
		return fmt.Errorf("facs entry score: %w", err)
	}
	if err := json.Unmarshal(raw[2], &e.Source); err != nil {
		return fmt.Errorf("facs entry source: %w", err)
	}
	return nil
}

type Aggregator struct {
	Normalizer float64
	TopK       int
}

func New(normalizer float64, topK int) Aggregator {
	if normalizer <= 0 {
		normalizer = DefaultNormalizer
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return Aggregator{Normalizer: normalizer, TopK: topK}
}

// Summarize returns the top-K labels of one clip, highest first. Labels with
// equal scores keep the order in which they were first seen.
func (a Aggregator) Summarize(p expression.Prediction) []Entry {
	var order []string
	sums := map[string]float64{}
	for _, f := range p.Frames {
		for _, s := range f.FACS {
			if _, ok := sums[s.Name]; !ok {
				order = append(order, s.Name)
			}
			sums[s.Name] += s.Score
		}
	}

	out := make([]Entry, 0, len(order))
	for _, label := range order {
		out = append(out, Entry{Label: label, Score: sums[label] / a.Normalizer, Source: p.File})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > a.TopK {
		out = out[:a.TopK]
	}
	return out
}

// Aggregate concatenates the summaries of every clip in prediction order.
func (a Aggregator) Aggregate(preds []expression.Prediction) []Entry {
	out := []Entry{}
	for _, p := range preds {
		out = append(out, a.Summarize(p)...)
	}
	return out
}

// Behaviors converts entries to the label -> prominence maps the scorer reads.
func Behaviors(entries []Entry) []map[string]float64 {
	out := make([]map[string]float64, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]float64{e.Label: e.Score})
	}
	return out
}
