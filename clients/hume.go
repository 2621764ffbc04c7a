package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/interview-coach/assess-pipeline/expression"
)

// Hume is the batch expression-measurement API.
type Hume struct {
	http   *HTTP
	url    string
	apiKey string
}

func NewHume(h *HTTP, url, apiKey string) *Hume {
	return &Hume{http: h, url: strings.TrimRight(url, "/"), apiKey: apiKey}
}

type humeModels struct {
	Face *humeFace `json:"face,omitempty"`
}
type humeFace struct {
	FACS struct{} `json:"facs"`
}
type humeJobReq struct {
	Models humeModels `json:"models"`
}
type humeJobResp struct {
	JobID string `json:"job_id"`
}

type humeState struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	CreatedMS      int64  `json:"created_timestamp_ms"`
	StartedMS      int64  `json:"started_timestamp_ms"`
	EndedMS        int64  `json:"ended_timestamp_ms"`
	NumErrors      int    `json:"num_errors"`
	NumPredictions int    `json:"num_predictions"`
}
type humeJobDetails struct {
	JobID string    `json:"job_id"`
	State humeState `json:"state"`
}

type humeSourcePredictions struct {
	Source struct {
		Filename string `json:"filename"`
	} `json:"source"`
	Results struct {
		Predictions []struct {
			File   string `json:"file"`
			Models struct {
				Face struct {
					GroupedPredictions []struct {
						ID          string `json:"id"`
						Predictions []struct {
							Frame int                `json:"frame"`
							Time  float64            `json:"time"`
							FACS  []expression.Score `json:"facs"`
						} `json:"predictions"`
					} `json:"grouped_predictions"`
				} `json:"face"`
			} `json:"models"`
		} `json:"predictions"`
	} `json:"results"`
}

func (h *Hume) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("X-Hume-Api-Key", h.apiKey)
	req.Header.Set("Accept", "application/json")
	return h.http.c.Do(req)
}

// Submit uploads the clip files as one batch job.
func (h *Hume) Submit(ctx context.Context, files []string, cfg expression.Config) (string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	var jr humeJobReq
	if cfg.FACS {
		jr.Models.Face = &humeFace{}
	}
	js, _ := json.Marshal(jr)
	if err := w.WriteField("json", string(js)); err != nil {
		return "", err
	}
	for _, path := range files {
		if err := addFile(w, path); err != nil {
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url+"/v0/batch/jobs", &b)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := h.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out humeJobResp
	if err := decode(resp, "hume submit", &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

func addFile(w *multipart.Writer, path string) error {
	fw, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	fd, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fd.Close()
	_, err = io.Copy(fw, fd)
	return err
}

func (h *Hume) State(ctx context.Context, jobID string) (*expression.JobState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url+"/v0/batch/jobs/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out humeJobDetails
	if err := decode(resp, "hume status", &out); err != nil {
		return nil, err
	}
	s := out.State
	return &expression.JobState{
		Status:         humeStatus(s.Status),
		Message:        s.Message,
		CreatedAt:      fromMillis(s.CreatedMS),
		StartedAt:      fromMillis(s.StartedMS),
		EndedAt:        fromMillis(s.EndedMS),
		NumErrors:      s.NumErrors,
		NumPredictions: s.NumPredictions,
	}, nil
}

// humeStatus maps the batch API job status onto the job lifecycle. The API
// reports a running job as IN_PROGRESS.
func humeStatus(s string) expression.Status {
	switch v := strings.ToUpper(strings.TrimSpace(s)); v {
	case "IN_PROGRESS", "RUNNING":
		return expression.StatusRunning
	default:
		return expression.Status(v)
	}
}

// Predictions returns one prediction per submitted file with the frames of
// every detected face flattened in order.
func (h *Hume) Predictions(ctx context.Context, jobID string) ([]expression.Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url+"/v0/batch/jobs/"+jobID+"/predictions", nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw []humeSourcePredictions
	if err := decode(resp, "hume predictions", &raw); err != nil {
		return nil, err
	}

	var out []expression.Prediction
	for _, src := range raw {
		for _, p := range src.Results.Predictions {
			pred := expression.Prediction{File: p.File}
			if pred.File == "" {
				pred.File = src.Source.Filename
			}
			for _, g := range p.Models.Face.GroupedPredictions {
				for _, f := range g.Predictions {
					pred.Frames = append(pred.Frames, expression.Frame{Frame: f.Frame, Time: f.Time, FACS: f.FACS})
				}
			}
			out = append(out, pred)
		}
	}
	if out == nil {
		return nil, fmt.Errorf("hume predictions: job %s returned no results", jobID)
	}
	return out, nil
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
