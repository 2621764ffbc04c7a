package facs

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/interview-coach/assess-pipeline/expression"
)

func frames(rows ...[]expression.Score) []expression.Frame {
	out := make([]expression.Frame, len(rows))
	for i, r := range rows {
		out[i] = expression.Frame{Frame: i, Time: float64(i) / 15, FACS: r}
	}
	return out
}

func sc(name string, v float64) expression.Score { return expression.Score{Name: name, Score: v} }

func TestSummarizeNormalizes(t *testing.T) {
	p := expression.Prediction{File: "clip_000.mp4", Frames: frames(
		[]expression.Score{sc("AU12 Lip Corner Puller", 2)},
		[]expression.Score{sc("AU12 Lip Corner Puller", 4)},
		[]expression.Score{sc("AU12 Lip Corner Puller", 6)},
	)}
	got := New(DefaultNormalizer, DefaultTopK).Summarize(p)
	if len(got) != 1 {
		t.Fatalf("entries = %+v", got)
	}
	if math.Abs(got[0].Score-0.8) > 1e-9 || got[0].Source != "clip_000.mp4" {
		t.Fatalf("entry = %+v, want score 0.8 from clip_000.mp4", got[0])
	}
}

func TestSummarizeTopKStable(t *testing.T) {
	p := expression.Prediction{File: "clip_001.mp4", Frames: frames(
		[]expression.Score{sc("AU1", 0.3), sc("AU2", 0.3), sc("AU4", 0.9)},
		[]expression.Score{sc("AU5", 0.3), sc("AU6", 0.1)},
	)}
	got := New(1, 3).Summarize(p)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	want := []string{"AU4", "AU1", "AU2"}
	for i, w := range want {
		if got[i].Label != w {
			t.Fatalf("order = %+v, want %v", got, want)
		}
	}
}

func TestAggregateKeepsClipOrder(t *testing.T) {
	preds := []expression.Prediction{
		{File: "a.mp4", Frames: frames([]expression.Score{sc("AU1", 1), sc("AU2", 3)})},
		{File: "empty.mp4"},
		{File: "b.mp4", Frames: frames([]expression.Score{sc("AU9", 0.5)})},
	}
	got := New(1, 3).Aggregate(preds)
	if len(got) != 3 {
		t.Fatalf("entries = %+v", got)
	}
	if got[0].Label != "AU2" || got[1].Label != "AU1" || got[2].Source != "b.mp4" {
		t.Fatalf("entries = %+v", got)
	}
}

func TestEntryJSON(t *testing.T) {
	entries := []Entry{{Label: "AU12 Lip Corner Puller", Score: 0.8, Source: "clip_000.mp4"}}
	b, err := json.Marshal(entries)
	if err != nil {
		t.Fatal(err)
	}
	if want := `[["AU12 Lip Corner Puller",0.8,"clip_000.mp4"]]`; string(b) != want {
		t.Fatalf("json = %s, want %s", b, want)
	}
	var back []Entry
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back[0] != entries[0] {
		t.Fatalf("decoded %+v", back[0])
	}
	if err := json.Unmarshal([]byte(`[["AU1",0.1]]`), &back); err == nil {
		t.Fatal("expected error for a two-element tuple")
	}
}

func TestAggregateDeterministic(t *testing.T) {
	preds := []expression.Prediction{{File: "c.mp4", Frames: frames(
		[]expression.Score{sc("AU1", 0.2), sc("AU2", 0.2), sc("AU3", 0.2), sc("AU4", 0.2)},
		[]expression.Score{sc("AU4", 0.2), sc("AU3", 0.2), sc("AU2", 0.2), sc("AU1", 0.2)},
	)}}
	a := New(DefaultNormalizer, DefaultTopK)
	first, _ := json.Marshal(a.Aggregate(preds))
	for i := 0; i < 20; i++ {
		again, _ := json.Marshal(a.Aggregate(preds))
		if !bytes.Equal(first, again) {
			t.Fatalf("run %d differs: %s vs %s", i, first, again)
		}
	}
}

func TestBehaviors(t *testing.T) {
	b := Behaviors([]Entry{{Label: "AU1", Score: 0.5}, {Label: "AU2", Score: 0.25}})
	if len(b) != 2 || b[0]["AU1"] != 0.5 || b[1]["AU2"] != 0.25 {
		t.Fatalf("behaviors = %v", b)
	}
}
