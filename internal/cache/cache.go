// Package cache persists the results of probing a compiler so that later
// runs against the same toolchain can skip the probe entirely.
//
// Records live in a directory derived from the toolchain's version string,
// so a compiler upgrade starts from an empty cache. Removing the directory
// is the only way to invalidate it.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

const (
	FlagsFile         = "cc_flags.json"
	ParamDefaultsFile = "cc_param_defaults.json"
	ParamsFile        = "cc_params.json"

	versionFile = "tool_version.txt"
)

// ParamDefault is what the compiler advertises for a numeric --param.
type ParamDefault struct {
	Default int64 `json:"default"`
	Min     int64 `json:"min"`
	Max     int64 `json:"max"`
}

type Cache struct {
	dir         string
	toolVersion string

	mu            sync.Mutex
	flags         []string
	paramDefaults map[string]ParamDefault
	params        []string
}

// Open loads whatever records exist for toolVersion under root. With
// ignoreReads set nothing is loaded, but Save still writes.
func Open(root string, toolVersion string, ignoreReads bool) (*Cache, error) {
	c := &Cache{
		dir:         filepath.Join(root, versionKey(toolVersion)),
		toolVersion: toolVersion,
	}

	err := os.MkdirAll(c.dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	if ignoreReads {
		return c, nil
	}

	if _, err := readRecord(c.path(FlagsFile), &c.flags); err != nil {
		return nil, err
	}
	if _, err := readRecord(c.path(ParamDefaultsFile), &c.paramDefaults); err != nil {
		return nil, err
	}
	if _, err := readRecord(c.path(ParamsFile), &c.params); err != nil {
		return nil, err
	}

	return c, nil
}

func versionKey(toolVersion string) string {
	sum := sha256.Sum256([]byte(toolVersion))
	return hex.EncodeToString(sum[:])[:16]
}

func (c *Cache) Dir() string { return c.dir }

func (c *Cache) ToolVersion() string { return c.toolVersion }

func (c *Cache) path(name string) string {
	return filepath.Join(c.dir, name)
}

// Flags returns the cached working flags and whether they were cached.
func (c *Cache) Flags() ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.flags), c.flags != nil
}

func (c *Cache) SetFlags(flags []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags = nonNil(slices.Clone(flags))
}

func (c *Cache) ParamDefaults() (map[string]ParamDefault, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paramDefaults == nil {
		return nil, false
	}
	res := make(map[string]ParamDefault, len(c.paramDefaults))
	for k, v := range c.paramDefaults {
		res[k] = v
	}
	return res, true
}

func (c *Cache) SetParamDefaults(defaults map[string]ParamDefault) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paramDefaults = make(map[string]ParamDefault, len(defaults))
	for k, v := range defaults {
		c.paramDefaults[k] = v
	}
}

func (c *Cache) Params() ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.params), c.params != nil
}

func (c *Cache) SetParams(params []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = nonNil(slices.Clone(params))
}

// Save writes every record that has been set or loaded.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.WriteFile(c.path(versionFile), []byte(c.toolVersion+"\n"), 0644)
	if err != nil {
		return fmt.Errorf("failed to write tool version: %w", err)
	}

	if c.flags != nil {
		if err := writeRecord(c.path(FlagsFile), c.flags); err != nil {
			return err
		}
	}
	if c.paramDefaults != nil {
		if err := writeRecord(c.path(ParamDefaultsFile), c.paramDefaults); err != nil {
			return err
		}
	}
	if c.params != nil {
		if err := writeRecord(c.path(ParamsFile), c.params); err != nil {
			return err
		}
	}
	return nil
}

func readRecord(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache record %s: %w", path, err)
	}
	err = json.Unmarshal(data, v)
	if err != nil {
		return false, fmt.Errorf("corrupt cache record %s (delete it to re-probe): %w", path, err)
	}
	return true, nil
}

func writeRecord(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache record: %w", err)
	}
	tmpPath := path + ".tmp"
	err = os.WriteFile(tmpPath, data, 0644)
	if err != nil {
		return fmt.Errorf("failed to write cache record %s: %w", path, err)
	}
	err = os.Rename(tmpPath, path)
	if err != nil {
		return fmt.Errorf("failed to move cache record into place: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
