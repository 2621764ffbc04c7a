package clients

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// --- ASR (/transcribe) ---
type TransSeg struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
type ASRResp struct {
	Segments []TransSeg `json:"segments"`
	Language string     `json:"language"`
}

func (h *HTTP) ASR(ctx context.Context, url, wavPath, language string) (*ASRResp, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return nil, err
	}
	fd, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	if _, err = io.Copy(fw, fd); err != nil {
		return nil, err
	}
	if language != "" {
		if err = w.WriteField("language", language); err != nil {
			return nil, err
		}
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/transcribe", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out ASRResp
	if err := decode(resp, "asr", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Whisper recognizes clip audio with the self-hosted whisper service.
type Whisper struct {
	http     *HTTP
	url      string
	language string
}

func NewWhisper(h *HTTP, url, language string) *Whisper {
	return &Whisper{http: h, url: strings.TrimRight(url, "/"), language: language}
}

// Transcribe returns the segment texts of one clip joined by spaces.
func (w *Whisper) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := w.http.ASR(ctx, w.url, audioPath, w.language)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}
