package scoring

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_weights.yaml
var defaultWeights []byte

// Weights are the closed lookup tables of the emotional and facial components.
type Weights struct {
	Emotions    map[string]float64 `yaml:"emotions"`
	Expressions map[string]float64 `yaml:"expressions"`

	emotionFold map[string]float64
}

func DefaultWeights() (*Weights, error) {
	var w Weights
	if err := yaml.Unmarshal(defaultWeights, &w); err != nil {
		return nil, fmt.Errorf("default weights: %w", err)
	}
	w.index()
	return &w, nil
}

// LoadWeights returns the default tables with the entries of the YAML file at
// path laid over them. An empty path yields the defaults.
func LoadWeights(path string) (*Weights, error) {
	w, err := DefaultWeights()
	if err != nil || path == "" {
		return w, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("weights %s: %w", path, err)
	}
	var over Weights
	if err := yaml.Unmarshal(b, &over); err != nil {
		return nil, fmt.Errorf("weights %s: %w", path, err)
	}
	for k, v := range over.Emotions {
		w.Emotions[k] = v
	}
	for k, v := range over.Expressions {
		w.Expressions[strings.ToUpper(k)] = v
	}
	w.index()
	return w, nil
}

func (w *Weights) index() {
	if w.Emotions == nil {
		w.Emotions = map[string]float64{}
	}
	if w.Expressions == nil {
		w.Expressions = map[string]float64{}
	}
	w.emotionFold = make(map[string]float64, len(w.Emotions))
	for k, v := range w.Emotions {
		w.emotionFold[strings.ToLower(k)] = v
	}
}

// Emotion looks the label up exactly, then ignoring case.
func (w *Weights) Emotion(label string) float64 {
	if v, ok := w.Emotions[label]; ok {
		return v
	}
	return w.emotionFold[strings.ToLower(label)]
}

func (w *Weights) Expression(label string) float64 {
	return w.Expressions[strings.ToUpper(label)]
}

// EmotionDistribution is one bucket per transcript timestamp:
// {timestamp: {emotion: prominence}}.
type EmotionDistribution []map[string]map[string]float64

// UnmarshalJSON skips buckets that are not objects and keeps only the bucket
// values that are emotion objects, so {"timestamp": "4.20", "emotions": {...}}
// decodes to the emotions alone. Non-numeric prominences are dropped.
func (d *EmotionDistribution) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(EmotionDistribution, 0, len(raw))
	for _, r := range raw {
		var bucket map[string]json.RawMessage
		if err := json.Unmarshal(r, &bucket); err != nil || bucket == nil {
			continue
		}
		kept := map[string]map[string]float64{}
		for ts, v := range bucket {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(v, &fields); err != nil || fields == nil {
				continue
			}
			emotions := make(map[string]float64, len(fields))
			for label, f := range fields {
				var score float64
				if err := json.Unmarshal(f, &score); err == nil {
					emotions[label] = score
				}
			}
			kept[ts] = emotions
		}
		out = append(out, kept)
	}
	*d = out
	return nil
}

// Behaviors holds {expression: prominence} maps, one per dominant action unit.
type Behaviors []map[string]float64

// UnmarshalJSON accepts a list whose elements are objects or the
// [label, score, source] tuples produced by the FACS summary. A bare
// {label: prominence} object decodes as a single entry.
func (b *Behaviors) UnmarshalJSON(data []byte) error {
	var single map[string]float64
	if err := json.Unmarshal(data, &single); err == nil {
		if single == nil {
			*b = Behaviors{}
		} else {
			*b = Behaviors{single}
		}
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("behaviors: want a list or a {label: prominence} object: %w", err)
	}
	out := make(Behaviors, 0, len(raw))
	for i, r := range raw {
		var m map[string]float64
		if err := json.Unmarshal(r, &m); err == nil {
			out = append(out, m)
			continue
		}
		var tuple []json.RawMessage
		if err := json.Unmarshal(r, &tuple); err != nil || len(tuple) < 2 {
			return fmt.Errorf("behavior %d: want an object or [label, score, source]", i)
		}
		var label string
		var score float64
		if err := json.Unmarshal(tuple[0], &label); err != nil {
			return fmt.Errorf("behavior %d label: %w", i, err)
		}
		if err := json.Unmarshal(tuple[1], &score); err != nil {
			return fmt.Errorf("behavior %d score: %w", i, err)
		}
		out = append(out, map[string]float64{label: score})
	}
	*b = out
	return nil
}

// Emotional is the raw weighted emotion sum.
func (w *Weights) Emotional(dist EmotionDistribution) float64 {
	total := 0.0
	for _, bucket := range dist {
		for _, ts := range sortedKeys(bucket) {
			emotions := bucket[ts]
			for _, label := range sortedKeys(emotions) {
				total += w.Emotion(label) * emotions[label]
			}
		}
	}
	return total
}

// Facial is the raw weighted expression sum.
func (w *Weights) Facial(b Behaviors) float64 {
	total := 0.0
	for _, entry := range b {
		for _, label := range sortedKeys(entry) {
			total += w.Expression(label) * entry[label]
		}
	}
	return total
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
