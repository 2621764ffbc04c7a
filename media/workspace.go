package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Workspace is the scratch directory of one pipeline run. Every temporary
// artifact of the run lives under Dir, so overlapping runs never share a path.
type Workspace struct {
	RunID string
	Dir   string

	once sync.Once
}

// NewWorkspace creates <root>/run-<uuid>. An empty root uses os.TempDir().
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	id := uuid.NewString()
	dir := filepath.Join(root, "run-"+id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("workspace %s: %w", dir, err)
	}
	log.WithFields(log.Fields{"run": id, "dir": dir}).Debug("workspace created")
	return &Workspace{RunID: id, Dir: dir}, nil
}

// Path returns the location of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Release deletes the workspace and everything in it. Safe to call more than once.
func (w *Workspace) Release() {
	w.once.Do(func() {
		if err := os.RemoveAll(w.Dir); err != nil {
			log.WithError(err).WithField("run", w.RunID).Warn("workspace cleanup failed")
			return
		}
		log.WithField("run", w.RunID).Debug("workspace released")
	})
}
