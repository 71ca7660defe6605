package harness

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"
)

var ErrWorkspace = errors.New("trial workspace unavailable")

// workspaces hands out one directory per trial id under root and tracks
// which ones are live.
type workspaces struct {
	root string
	live *xsync.MapOf[string, string]
}

func newWorkspaces(root string) *workspaces {
	return &workspaces{
		root: root,
		live: xsync.NewMapOf[string, string](),
	}
}

type workspace struct {
	id     string
	path   string
	parent *workspaces
}

func (w *workspace) Path() string { return w.path }

func (w *workspace) File(name string) string { return filepath.Join(w.path, name) }

func (w *workspace) Close() error {
	defer w.parent.live.Delete(w.id)
	if err := os.RemoveAll(w.path); err != nil {
		return fmt.Errorf("failed to remove workspace %s: %w", w.path, err)
	}
	return nil
}

// open creates the directory for trialID, reusing it if a previous run of
// the same id left it behind. Two live trials never share an id.
func (ws *workspaces) open(trialID string) (*workspace, error) {
	if trialID == "" || trialID != filepath.Base(trialID) || trialID == "." || trialID == ".." {
		return nil, fmt.Errorf("%w: bad trial id %q", ErrWorkspace, trialID)
	}
	path := filepath.Join(ws.root, trialID)
	if _, loaded := ws.live.LoadOrStore(trialID, path); loaded {
		return nil, fmt.Errorf("%w: trial %s is already running", ErrWorkspace, trialID)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		ws.live.Delete(trialID)
		return nil, fmt.Errorf("%w: %v", ErrWorkspace, err)
	}
	return &workspace{id: trialID, path: path, parent: ws}, nil
}

func (ws *workspaces) ids() []string {
	var res []string
	ws.live.Range(func(id string, _ string) bool {
		res = append(res, id)
		return true
	})
	slices.Sort(res)
	return res
}
