// Package history keeps a record of every finished tuning run in a single
// append-only file of zstd frames, one JSON line per frame.
package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/programme-lv/cctuner/internal/space"
)

const FileName = "runs.jsonl.zst"

// maxLine bounds a single record; configurations of a few thousand flags
// fit comfortably.
const maxLine = 16 * 1024 * 1024

type RunState string

const (
	RunComplete  RunState = "COMPLETE"
	RunEarlyStop RunState = "EARLY_STOP"
	RunFailed    RunState = "FAILED"
)

type Record struct {
	RunUuid     string              `json:"run_uuid"`
	Program     string              `json:"program"`
	ToolVersion string              `json:"tool_version"`
	State       RunState            `json:"state"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
	Trials      int                 `json:"trials"`
	BestSeconds *float64            `json:"best_seconds"`
	Flags       []string            `json:"flags"`
	Config      space.Configuration `json:"config"`
}

// Successful runs are the ones that found a configuration.
func (r Record) Successful() bool {
	return r.State == RunComplete || r.State == RunEarlyStop
}

type Store struct {
	path string
	mu   sync.Mutex
}

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &Store{path: filepath.Join(dir, FileName)}, nil
}

func (s *Store) Path() string { return s.path }

// Append writes rec as its own zstd frame at the end of the file.
func (s *Store) Append(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	if _, err := enc.Write(line); err != nil {
		enc.Close()
		return fmt.Errorf("failed to compress run record: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush run record: %w", err)
	}
	return f.Sync()
}

// ReadAll returns every record in the order written. A missing file is
// an empty history.
func (s *Store) ReadAll() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	var records []Record
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("corrupt history record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return records, nil
}
