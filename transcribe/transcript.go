package transcribe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/interview-coach/assess-pipeline/errs"
)

// Entry is the recognized text of one clip, keyed by the clip's end time.
type Entry struct {
	Index int
	End   float64 // seconds
	Text  string
}

// Transcript is ordered by clip end time. It serializes as a JSON object
// whose keys are the end times: {"5":"Hello","10":"World"}.
type Transcript []Entry

func (t Transcript) Validate() error {
	for i := 1; i < len(t); i++ {
		if t[i].End <= t[i-1].End {
			return errs.Errorf(errs.KindInput, "transcript",
				"end times must increase: %v after %v", t[i].End, t[i-1].End)
		}
	}
	return nil
}

func (t Transcript) String() string {
	b, err := t.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(b)
}

func key(end float64) string {
	return strconv.FormatFloat(end, 'f', -1, 64)
}

func (t Transcript) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key(e.End))
		v, err := json.Marshal(e.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *Transcript) UnmarshalJSON(b []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return errs.E(errs.KindInput, "transcript", err)
	}
	out := make(Transcript, 0, len(raw))
	for k, text := range raw {
		end, err := strconv.ParseFloat(k, 64)
		if err != nil {
			return errs.E(errs.KindInput, "transcript", fmt.Errorf("timestamp key %q: %w", k, err))
		}
		out = append(out, Entry{End: end, Text: text})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].End < out[j].End })
	for i := range out {
		out[i].Index = i
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*t = out
	return nil
}
