package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// --- Visualization ---
type RadarReq struct {
	Categories    []string  `json:"categories"`
	Values        []float64 `json:"values"`
	CandidateName string    `json:"candidate_name"`
	OutputDir     string    `json:"output_dir,omitempty"`
}
type RadarResp struct {
	Status string `json:"status"`
	Path   string `json:"path"`
}

func (h *HTTP) GenerateRadar(ctx context.Context, url string, req RadarReq) (*RadarResp, error) {
	b, _ := json.Marshal(req)
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/generate-radar", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", "application/json")
	resp, err := h.c.Do(r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out RadarResp
	if err := decode(resp, "viz radar", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
