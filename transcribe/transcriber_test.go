package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/interview-coach/assess-pipeline/errs"
	"github.com/interview-coach/assess-pipeline/media"
)

// writeWav writes a short silent mono 16 kHz WAV file.
func writeWav(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           make([]int, 1600),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
}

type fakeRecognizer struct {
	texts map[string]string
	fail  map[string]error
	delay time.Duration

	inFlight atomic.Int32
	mu       sync.Mutex
	peak     int32
}

func (f *fakeRecognizer) Transcribe(ctx context.Context, path string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	f.mu.Lock()
	if n > f.peak {
		f.peak = n
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err, ok := f.fail[path]; ok {
		return "", err
	}
	return f.texts[path], nil
}

func makeClips(t *testing.T, n int, length float64) []media.Clip {
	t.Helper()
	dir := t.TempDir()
	clips := make([]media.Clip, n)
	for i := range clips {
		clips[i] = media.Clip{
			Index:     i,
			Start:     float64(i) * length,
			End:       float64(i+1) * length,
			AudioPath: filepath.Join(dir, fmt.Sprintf("clip_%03d.wav", i)),
		}
		writeWav(t, clips[i].AudioPath)
	}
	return clips
}

func TestClip(t *testing.T) {
	clips := makeClips(t, 1, 5)
	rec := &fakeRecognizer{texts: map[string]string{clips[0].AudioPath: "  Hello \n"}}

	e, err := New(rec, 1).Clip(context.Background(), clips[0])
	if err != nil {
		t.Fatalf("Clip: %v", err)
	}
	if e.End != 5 || e.Text != "Hello" {
		t.Fatalf("entry = %+v", e)
	}
}

func TestAllIsolatesFailures(t *testing.T) {
	clips := makeClips(t, 4, 5)
	// clip 1 is not a WAV at all, clip 2 fails inside the model
	if err := os.WriteFile(clips[1].AudioPath, []byte("not audio"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rec := &fakeRecognizer{
		texts: map[string]string{
			clips[0].AudioPath: "Hello",
			clips[3].AudioPath: "World",
		},
		fail: map[string]error{clips[2].AudioPath: errors.New("model crashed")},
	}

	res := New(rec, 2).All(context.Background(), clips)

	if len(res.Transcript) != 2 {
		t.Fatalf("transcript = %+v", res.Transcript)
	}
	if res.Transcript[0].End != 5 || res.Transcript[0].Text != "Hello" ||
		res.Transcript[1].End != 20 || res.Transcript[1].Text != "World" {
		t.Errorf("transcript out of order: %+v", res.Transcript)
	}
	if len(res.Failures) != 2 || res.Failures[0].Index != 1 || res.Failures[1].Index != 2 {
		t.Fatalf("failures = %+v", res.Failures)
	}
	for _, f := range res.Failures {
		if !errs.Is(f.Err, errs.KindTranscription) {
			t.Errorf("failure %d kind = %v", f.Index, errs.KindOf(f.Err))
		}
	}
}

func TestAllRespectsConcurrencyLimit(t *testing.T) {
	clips := makeClips(t, 8, 5)
	rec := &fakeRecognizer{texts: map[string]string{}, delay: 10 * time.Millisecond}

	res := New(rec, 3).All(context.Background(), clips)
	if len(res.Transcript) != 8 || len(res.Failures) != 0 {
		t.Fatalf("unexpected result: %d entries, %d failures", len(res.Transcript), len(res.Failures))
	}
	if rec.peak > 3 {
		t.Fatalf("peak concurrency %d exceeds limit 3", rec.peak)
	}
}

func TestTranscriptJSON(t *testing.T) {
	tr := Transcript{{Index: 0, End: 5, Text: "Hello"}, {Index: 1, End: 10, Text: "World"}, {Index: 2, End: 12.5, Text: `say "hi"`}}
	b, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"5":"Hello","10":"World","12.5":"say \"hi\""}`
	if string(b) != want {
		t.Fatalf("marshal = %s, want %s", b, want)
	}

	var back Transcript
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 3 || back[1].End != 10 || back[1].Index != 1 || back[2].Text != `say "hi"` {
		t.Fatalf("unmarshal = %+v", back)
	}
}

func TestTranscriptRejectsDuplicateEndTimes(t *testing.T) {
	var tr Transcript
	err := json.Unmarshal([]byte(`{"5":"a","5.0":"b"}`), &tr)
	if !errs.Is(err, errs.KindInput) {
		t.Fatalf("err = %v, want InputError", err)
	}
	if err := json.Unmarshal([]byte(`{"five":"a"}`), &tr); !errs.Is(err, errs.KindInput) {
		t.Fatalf("non-numeric key err = %v", err)
	}
}
