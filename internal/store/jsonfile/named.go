package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/hay-kot/mqview/internal/core/jsonrpc"
)

const lockFile = ".lock"

// NamedStore keeps one JSON file per item in a directory, named after the
// item's name.
type NamedStore[T any] struct {
	dir  string
	name func(T) string
	mu   sync.RWMutex
}

// NewCommandStore stores saved publish commands under dir.
func NewCommandStore(dir string) *NamedStore[jsonrpc.CommandParams] {
	return &NamedStore[jsonrpc.CommandParams]{
		dir:  dir,
		name: func(c jsonrpc.CommandParams) string { return c.Name },
	}
}

// NewPipelineStore stores saved pipelines under dir.
func NewPipelineStore(dir string) *NamedStore[jsonrpc.PipelineParams] {
	return &NamedStore[jsonrpc.PipelineParams]{
		dir:  dir,
		name: func(p jsonrpc.PipelineParams) string { return p.Name },
	}
}

// ValidateName rejects names that would escape the store directory.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidName, name)
	}
	return nil
}

func (s *NamedStore[T]) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Save creates or replaces the item with the same name.
func (s *NamedStore[T]) Save(ctx context.Context, item T) error {
	name := s.name(item)
	if err := ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return withFileLock(filepath.Join(s.dir, lockFile), syscall.LOCK_EX, func() error {
		data, err := json.MarshalIndent(item, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		return writeAtomic(s.path(name), data)
	})
}

// Get returns the item called name. Returns ErrNotFound if it does not exist.
func (s *NamedStore[T]) Get(ctx context.Context, name string) (T, error) {
	var item T
	if err := ValidateName(name); err != nil {
		return item, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	err := withFileLock(filepath.Join(s.dir, lockFile), syscall.LOCK_SH, func() error {
		data, err := os.ReadFile(s.path(name))
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%q: %w", name, ErrNotFound)
			}
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := json.Unmarshal(data, &item); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		return nil
	})
	return item, err
}

// Delete removes the item called name. Returns ErrNotFound if it does not
// exist.
func (s *NamedStore[T]) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return withFileLock(filepath.Join(s.dir, lockFile), syscall.LOCK_EX, func() error {
		if err := os.Remove(s.path(name)); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%q: %w", name, ErrNotFound)
			}
			return fmt.Errorf("remove %s: %w", name, err)
		}
		return nil
	})
}

// List returns every stored item ordered by file name. Files that fail to
// parse are skipped.
func (s *NamedStore[T]) List(ctx context.Context) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := []T{}
	err := withFileLock(filepath.Join(s.dir, lockFile), syscall.LOCK_SH, func() error {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("read directory: %w", err)
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)

		for _, n := range names {
			data, err := os.ReadFile(filepath.Join(s.dir, n))
			if err != nil {
				continue
			}
			var item T
			if err := json.Unmarshal(data, &item); err != nil {
				continue
			}
			items = append(items, item)
		}
		return nil
	})
	return items, err
}
