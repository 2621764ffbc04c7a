package media

import (
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/interview-coach/assess-pipeline/errs"
)

func TestBoundsExample(t *testing.T) {
	spans, err := Bounds(12, 5)
	if err != nil {
		t.Fatalf("Bounds: %v", err)
	}
	want := []Span{{0, 5}, {5, 10}, {10, 12}}
	if len(spans) != len(want) {
		t.Fatalf("got %d spans, want %d", len(spans), len(want))
	}
	for i := range want {
		if spans[i] != want[i] {
			t.Errorf("span %d = %+v, want %+v", i, spans[i], want[i])
		}
	}
}

func TestBoundsPartition(t *testing.T) {
	cases := []struct{ d, l float64 }{
		{10, 5}, {0.5, 5}, {7.3, 2.5}, {60, 5}, {61.04, 5}, {1, 0.1}, {3, 3}, {100, 7},
	}
	for _, c := range cases {
		spans, err := Bounds(c.d, c.l)
		if err != nil {
			t.Fatalf("Bounds(%v, %v): %v", c.d, c.l, err)
		}
		if want := int(math.Ceil(c.d / c.l)); len(spans) != want {
			t.Errorf("Bounds(%v, %v): %d clips, want %d", c.d, c.l, len(spans), want)
		}
		if spans[0].Start != 0 {
			t.Errorf("Bounds(%v, %v): first start %v", c.d, c.l, spans[0].Start)
		}
		for i := 1; i < len(spans); i++ {
			if spans[i].Start != spans[i-1].End {
				t.Errorf("Bounds(%v, %v): gap between %d and %d", c.d, c.l, i-1, i)
			}
			if spans[i].End <= spans[i-1].End {
				t.Errorf("Bounds(%v, %v): end times not increasing at %d", c.d, c.l, i)
			}
		}
		if last := spans[len(spans)-1].End; last != c.d {
			t.Errorf("Bounds(%v, %v): last end %v", c.d, c.l, last)
		}
	}
}

func TestBoundsRejectsBadInput(t *testing.T) {
	for _, c := range []struct{ d, l float64 }{{10, 0}, {10, -1}, {0, 5}, {-3, 5}, {math.NaN(), 5}, {10, math.Inf(1)}, {12, 1e-300}, {3600, 0.01}} {
		_, err := Bounds(c.d, c.l)
		if !errs.Is(err, errs.KindInput) {
			t.Errorf("Bounds(%v, %v) err = %v, want InputError", c.d, c.l, err)
		}
	}
}

type fakeRunner struct {
	mu       sync.Mutex
	probe    string
	probeErr error
	failOn   string // fail any ffmpeg call whose output path contains this
	calls    [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if name == "ffprobe" {
		if f.probeErr != nil {
			return nil, f.probeErr
		}
		return []byte(f.probe), nil
	}
	out := args[len(args)-1]
	if f.failOn != "" && strings.Contains(out, f.failOn) {
		return nil, errors.New("invalid data found when processing input")
	}
	return nil, os.WriteFile(out, []byte("media"), 0o644)
}

func TestSegment(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	defer ws.Release()

	r := &fakeRunner{probe: `{"format":{"duration":"12.000000"}}`}
	s := NewSegmenter("ffmpeg", "ffprobe", 5, 16000, 1).WithRunner(r)

	clips, err := s.Segment(context.Background(), ws, "interview.mp4")
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	ends := []float64{5, 10, 12}
	if len(clips) != len(ends) {
		t.Fatalf("got %d clips, want %d", len(clips), len(ends))
	}
	for i, c := range clips {
		if c.Index != i || c.End != ends[i] {
			t.Errorf("clip %d = %+v", i, c)
		}
		for _, p := range []string{c.VideoPath, c.AudioPath} {
			if !strings.HasPrefix(p, ws.Dir) {
				t.Errorf("artifact %s outside workspace %s", p, ws.Dir)
			}
			if _, err := os.Stat(p); err != nil {
				t.Errorf("artifact %s missing: %v", p, err)
			}
		}
	}
	// one probe plus a video and an audio extraction per clip
	if len(r.calls) != 1+2*len(clips) {
		t.Errorf("runner calls = %d", len(r.calls))
	}
	last := strings.Join(r.calls[len(r.calls)-1], " ")
	for _, want := range []string{"-ss 10.000", "-t 2.000", "-vn", "-ar 16000", "-ac 1"} {
		if !strings.Contains(last, want) {
			t.Errorf("audio extraction %q missing %q", last, want)
		}
	}
}

func TestSegmentDecodeErrors(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	defer ws.Release()

	probeFail := NewSegmenter("ffmpeg", "ffprobe", 5, 16000, 1).
		WithRunner(&fakeRunner{probeErr: errors.New("moov atom not found")})
	if _, err := probeFail.Segment(context.Background(), ws, "broken.mp4"); !errs.Is(err, errs.KindMediaDecode) {
		t.Errorf("probe failure err = %v, want MediaDecodeError", err)
	}

	noDuration := NewSegmenter("ffmpeg", "ffprobe", 5, 16000, 1).
		WithRunner(&fakeRunner{probe: `{"format":{"duration":"N/A"}}`})
	if _, err := noDuration.Segment(context.Background(), ws, "broken.mp4"); !errs.Is(err, errs.KindMediaDecode) {
		t.Errorf("bad duration err = %v, want MediaDecodeError", err)
	}

	extractFail := NewSegmenter("ffmpeg", "ffprobe", 5, 16000, 1).
		WithRunner(&fakeRunner{probe: `{"format":{"duration":"12"}}`, failOn: "clip_001.wav"})
	_, err = extractFail.Segment(context.Background(), ws, "interview.mp4")
	var e *errs.Error
	if !errors.As(err, &e) || e.Kind != errs.KindMediaDecode || e.Clip != 1 {
		t.Errorf("extraction failure err = %v, want MediaDecodeError for clip 1", err)
	}
}

func TestWorkspaceIsolationAndRelease(t *testing.T) {
	root := t.TempDir()
	a, err := NewWorkspace(root)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	b, err := NewWorkspace(root)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	if a.Dir == b.Dir || a.RunID == b.RunID {
		t.Fatalf("workspaces collide: %s", a.Dir)
	}
	if a.Path("clip_000.wav") == b.Path("clip_000.wav") {
		t.Fatalf("same artifact path in two runs")
	}

	if err := os.WriteFile(a.Path("clip_000.wav"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	a.Release()
	a.Release()
	if _, err := os.Stat(a.Dir); !os.IsNotExist(err) {
		t.Fatalf("workspace %s still present after Release", a.Dir)
	}
	if _, err := os.Stat(b.Dir); err != nil {
		t.Fatalf("releasing one run removed another: %v", err)
	}
	b.Release()
}
