package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

func mkSessionDir(outputsRoot string) (string, string, error) {
	ts := time.Now().Format("20060102-150405")
	sid := "session_" + ts
	dir := filepath.Join(outputsRoot, sid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	return sid, dir, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteReport stores r as report-<run>.json in a new session directory under
// the configured outputs root and returns its path.
func (p *Pipeline) WriteReport(r *Report) (string, error) {
	_, dir, err := mkSessionDir(p.cfg.Paths.Outputs)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "report-"+shortID(r.RunID)+".json")
	if err := writeJSON(path, r); err != nil {
		return "", err
	}
	return path, nil
}

// WriteJSON writes v as indented JSON to path.
func WriteJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return writeJSON(path, v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
