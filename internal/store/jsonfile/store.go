// Package jsonfile persists bridge data as JSON files: the list of known
// brokers and one file per saved command or pipeline.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"syscall"
)

var (
	// ErrNotFound is returned when a broker, command or pipeline does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidName is returned for names that cannot be used as file names.
	ErrInvalidName = errors.New("invalid name")
)

// BrokerStore keeps the known broker hosts as a JSON array of strings.
type BrokerStore struct {
	path string
	mu   sync.RWMutex
}

// NewBrokerStore creates a broker store backed by the file at path.
func NewBrokerStore(path string) *BrokerStore {
	return &BrokerStore{path: path}
}

// List returns the known brokers in the order they were added.
func (s *BrokerStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hosts []string
	err := withFileLock(s.path+".lock", syscall.LOCK_SH, func() error {
		var err error
		hosts, err = s.load()
		return err
	})
	return hosts, err
}

// Add remembers host. Adding a known host is a no-op.
func (s *BrokerStore) Add(ctx context.Context, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withFileLock(s.path+".lock", syscall.LOCK_EX, func() error {
		hosts, err := s.load()
		if err != nil {
			return err
		}
		if slices.Contains(hosts, host) {
			return nil
		}
		return s.save(append(hosts, host))
	})
}

// Remove forgets host. Returns ErrNotFound if it was not known.
func (s *BrokerStore) Remove(ctx context.Context, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withFileLock(s.path+".lock", syscall.LOCK_EX, func() error {
		hosts, err := s.load()
		if err != nil {
			return err
		}

		idx := slices.Index(hosts, host)
		if idx < 0 {
			return fmt.Errorf("broker %q: %w", host, ErrNotFound)
		}
		return s.save(slices.Delete(hosts, idx, idx+1))
	})
}

// load reads the brokers file from disk.
// Returns an empty list if the file doesn't exist.
func (s *BrokerStore) load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read brokers file: %w", err)
	}

	if len(data) == 0 {
		return []string{}, nil
	}

	var hosts []string
	if err := json.Unmarshal(data, &hosts); err != nil {
		return nil, fmt.Errorf("parse brokers file: %w", err)
	}
	if hosts == nil {
		hosts = []string{}
	}
	return hosts, nil
}

func (s *BrokerStore) save(hosts []string) error {
	data, err := json.Marshal(hosts)
	if err != nil {
		return fmt.Errorf("marshal brokers: %w", err)
	}
	return writeAtomic(s.path, data)
}
