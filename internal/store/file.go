package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/imishinist/coldbench/internal/models"
)

// tierTraces is one entry of a trace dump file.
type tierTraces struct {
	MemorySize int32                 `json:"memorySize"`
	Traces     []models.MinimalTrace `json:"traces"`
}

// FileStore keeps one JSON file per function and run, holding the traces
// of every tier.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the dump file of a function and run.
func (s *FileStore) Path(function, runID string) string {
	return filepath.Join(s.dir, safeName(function)+"-"+safeName(runID)+".json")
}

func (s *FileStore) Save(_ context.Context, function, runID string, tier models.Tier, traces []models.MinimalTrace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(function, runID)
	entries, err := readDump(path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	if traces == nil {
		traces = []models.MinimalTrace{}
	}
	replaced := false
	for i := range entries {
		if entries[i].MemorySize == tier.MemorySize {
			entries[i].Traces = traces
			replaced = true
		}
	}
	if !replaced {
		entries = append(entries, tierTraces{MemorySize: tier.MemorySize, Traces: traces})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode traces: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("failed to write traces: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write traces: %w", err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context, function, runID string, tier models.Tier) ([]models.MinimalTrace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := readDump(s.Path(function, runID))
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.MemorySize == tier.MemorySize {
			return e.Traces, nil
		}
	}
	return nil, fmt.Errorf("%w: %s run %s tier %s", ErrNotFound, function, runID, tier)
}

func (s *FileStore) Close() error {
	return nil
}

func readDump(path string) ([]tierTraces, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read traces: %w", err)
	}

	var entries []tierTraces
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return entries, nil
}

// safeName keeps a name usable as a file name; ARNs contain colons.
func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
