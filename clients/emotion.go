package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// --- Emotion (/detect) ---
type EmoReq struct {
	Text string `json:"text"`
}
type EmoScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}
type EmoResp struct {
	Emotions        []EmoScore `json:"emotions"`
	DominantEmotion string     `json:"dominant_emotion"`
}

func (h *HTTP) Emotion(ctx context.Context, url, text string) (*EmoResp, error) {
	b, _ := json.Marshal(EmoReq{Text: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/detect", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out EmoResp
	if err := decode(resp, "emotion", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EmotionDetector maps transcript text to emotion prominences.
type EmotionDetector struct {
	http *HTTP
	url  string
}

func NewEmotionDetector(h *HTTP, url string) *EmotionDetector {
	return &EmotionDetector{http: h, url: strings.TrimRight(url, "/")}
}

// Detect returns label -> score for text. Repeated labels accumulate.
func (d *EmotionDetector) Detect(ctx context.Context, text string) (map[string]float64, error) {
	resp, err := d.http.Emotion(ctx, d.url, text)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(resp.Emotions))
	for _, e := range resp.Emotions {
		out[e.Label] += e.Score
	}
	return out, nil
}
