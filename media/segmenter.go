package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/interview-coach/assess-pipeline/errs"
)

// MaxClips bounds the number of clips one video may be split into.
const MaxClips = 100000

// Span is one clip boundary pair, in seconds.
type Span struct {
	Start, End float64
}

// Clip is a fixed-length slice of the source video with its own
// video-only and audio-only artifacts.
type Clip struct {
	Index     int     `json:"index"`
	Start     float64 `json:"start_time"`
	End       float64 `json:"end_time"`
	VideoPath string  `json:"-"`
	AudioPath string  `json:"-"`
}

// Bounds partitions [0, duration) into ceil(duration/length) spans of
// length seconds; the last span ends at duration.
func Bounds(duration, length float64) ([]Span, error) {
	if length <= 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return nil, errs.Errorf(errs.KindInput, "segment", "clip length must be > 0, got %v", length)
	}
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return nil, errs.Errorf(errs.KindInput, "segment", "video duration must be > 0, got %v", duration)
	}

	count := math.Ceil(duration / length)
	if count > MaxClips {
		return nil, errs.Errorf(errs.KindInput, "segment", "%v s at clip length %v gives more than %d clips", duration, length, MaxClips)
	}
	n := int(count)
	spans := make([]Span, 0, n)
	for i := 0; i < n; i++ {
		start := float64(i) * length
		if start >= duration {
			break
		}
		end := math.Min(float64(i+1)*length, duration)
		spans = append(spans, Span{Start: start, End: end})
	}
	return spans, nil
}

// Runner executes an external media tool and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	cmd := exec.CommandContext(ctx, path, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

type Segmenter struct {
	FFmpeg     string
	FFprobe    string
	ClipLength float64 // seconds
	SampleRate int
	Channels   int

	run Runner
}

func NewSegmenter(ffmpeg, ffprobe string, clipLength float64, sampleRate, channels int) *Segmenter {
	return &Segmenter{
		FFmpeg:     ffmpeg,
		FFprobe:    ffprobe,
		ClipLength: clipLength,
		SampleRate: sampleRate,
		Channels:   channels,
		run:        execRunner{},
	}
}

// WithRunner swaps the tool runner.
func (s *Segmenter) WithRunner(r Runner) *Segmenter {
	s.run = r
	return s
}

type ffprobeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns the container duration of videoPath in seconds.
func (s *Segmenter) Probe(ctx context.Context, videoPath string) (float64, error) {
	out, err := s.run.Run(ctx, s.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		videoPath,
	)
	if err != nil {
		return 0, errs.E(errs.KindMediaDecode, "segment.probe", err)
	}
	var probe ffprobeFormat
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, errs.E(errs.KindMediaDecode, "segment.probe", fmt.Errorf("parse ffprobe output: %w", err))
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil || d <= 0 {
		return 0, errs.Errorf(errs.KindMediaDecode, "segment.probe", "no usable duration in %q", probe.Format.Duration)
	}
	return d, nil
}

// Segment splits videoPath into clips inside ws.
func (s *Segmenter) Segment(ctx context.Context, ws *Workspace, videoPath string) ([]Clip, error) {
	start := time.Now()
	duration, err := s.Probe(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	spans, err := Bounds(duration, s.ClipLength)
	if err != nil {
		return nil, err
	}

	clips := make([]Clip, 0, len(spans))
	for i, sp := range spans {
		c := Clip{
			Index:     i,
			Start:     sp.Start,
			End:       sp.End,
			VideoPath: ws.Path(fmt.Sprintf("clip_%03d.mp4", i)),
			AudioPath: ws.Path(fmt.Sprintf("clip_%03d.wav", i)),
		}
		if err := s.extract(ctx, videoPath, c); err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}

	log.WithFields(log.Fields{
		"run":      ws.RunID,
		"duration": duration,
		"clips":    len(clips),
		"elapsed":  time.Since(start),
	}).Info("video segmented")
	return clips, nil
}

func (s *Segmenter) extract(ctx context.Context, src string, c Clip) error {
	ss := formatSeconds(c.Start)
	t := formatSeconds(c.End - c.Start)

	if _, err := s.run.Run(ctx, s.FFmpeg,
		"-y", "-v", "error",
		"-ss", ss, "-i", src, "-t", t,
		"-an", "-c:v", "libx264", "-preset", "veryfast",
		c.VideoPath,
	); err != nil {
		return errs.Clip(errs.KindMediaDecode, "segment.video", c.Index, err)
	}

	if _, err := s.run.Run(ctx, s.FFmpeg,
		"-y", "-v", "error",
		"-ss", ss, "-i", src, "-t", t,
		"-vn", "-ac", strconv.Itoa(s.Channels), "-ar", strconv.Itoa(s.SampleRate), "-c:a", "pcm_s16le",
		c.AudioPath,
	); err != nil {
		return errs.Clip(errs.KindMediaDecode, "segment.audio", c.Index, err)
	}
	return nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
