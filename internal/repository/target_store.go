package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/noah-isme/cohort-assistant/internal/probe"
)

// TargetStore persists the uptime target catalog as a JSON document on disk,
// sorted by name and atomically rewritten on every change.
type TargetStore interface {
	Read() ([]probe.Target, error)
	Write(targets []probe.Target) error
	Add(target probe.Target) error
	Remove(id string) error
}

type targetStore struct {
	mu   sync.Mutex
	path string
}

// NewTargetStore builds a file-backed target catalog at the given path.
func NewTargetStore(path string) TargetStore {
	return &targetStore{path: path}
}

func (s *targetStore) Read() ([]probe.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *targetStore) read() ([]probe.Target, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, storageErr(err)
	}

	var targets []probe.Target
	if err := json.Unmarshal(data, &targets); err != nil {
		return nil, storageErr(err)
	}
	return targets, nil
}

func (s *targetStore) Write(targets []probe.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(targets)
}

func (s *targetStore) write(targets []probe.Target) error {
	sort.SliceStable(targets, func(i, j int) bool {
		return strings.ToLower(targets[i].Name) < strings.ToLower(targets[j].Name)
	})

	data, err := json.MarshalIndent(targets, "", "    ")
	if err != nil {
		return storageErr(err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".targets-*.json")
	if err != nil {
		return storageErr(err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return storageErr(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return storageErr(err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return storageErr(err)
	}
	return nil
}

func (s *targetStore) Add(target probe.Target) error {
	if err := target.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	targets, err := s.read()
	if err != nil {
		return err
	}
	for _, existing := range targets {
		if existing.ID == target.ID {
			return fmt.Errorf("%w: duplicate target id %q", probe.ErrInvalidTarget, target.ID)
		}
		if strings.EqualFold(existing.Name, target.Name) {
			return fmt.Errorf("%w: duplicate target name %q", probe.ErrInvalidTarget, target.Name)
		}
	}

	return s.write(append(targets, target))
}

func (s *targetStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets, err := s.read()
	if err != nil {
		return err
	}

	kept := targets[:0]
	for _, target := range targets {
		if target.ID != id {
			kept = append(kept, target)
		}
	}
	if len(kept) == len(targets) {
		return ErrNotFound
	}

	return s.write(kept)
}
