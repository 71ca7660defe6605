package xdg

import (
	"os"
	"path/filepath"
)

// Dirs resolves the XDG base directories cctuner writes to.
type Dirs struct {
	cacheHome string
	stateHome string
}

func NewDirs() *Dirs {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv("HOME")
		if homeDir == "" {
			homeDir = os.TempDir()
		}
	}

	d := &Dirs{}

	d.cacheHome = os.Getenv("XDG_CACHE_HOME")
	if d.cacheHome == "" {
		d.cacheHome = filepath.Join(homeDir, ".cache")
	}

	d.stateHome = os.Getenv("XDG_STATE_HOME")
	if d.stateHome == "" {
		d.stateHome = filepath.Join(homeDir, ".local", "state")
	}

	return d
}

// AppCacheDir holds data that can be regenerated, e.g. probe results.
func (d *Dirs) AppCacheDir(appName string) string {
	return filepath.Join(d.cacheHome, appName)
}

// AppStateDir holds data worth keeping between runs, e.g. tuning history.
func (d *Dirs) AppStateDir(appName string) string {
	return filepath.Join(d.stateHome, appName)
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
