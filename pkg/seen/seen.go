package seen

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Store persists the set of post IDs a run has already processed, so
// later runs skip them before any adapter work. The on-disk format is a
// small JSON document, written atomically.
type Store struct {
	path      string
	ids       map[string]struct{}
	updatedAt time.Time
}

// fileFormat is the serialized shape of the store.
type fileFormat struct {
	IDs       []string  `json:"ids"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// Open loads a store from path, creating an empty one when the file does
// not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, ids: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read seen file: %w", err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seen file: %w", err)
	}
	for _, id := range f.IDs {
		s.ids[id] = struct{}{}
	}
	s.updatedAt = f.UpdatedAt
	return s, nil
}

// Contains reports whether the ID was already processed.
func (s *Store) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Add records a processed ID in memory; Save persists it.
func (s *Store) Add(id string) {
	s.ids[id] = struct{}{}
}

// Len returns the number of recorded IDs.
func (s *Store) Len() int {
	return len(s.ids)
}

// Save writes the store to disk via a temp file and atomic rename.
func (s *Store) Save() error {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.MarshalIndent(fileFormat{
		IDs:       ids,
		UpdatedAt: time.Now(),
		Version:   1,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal seen file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create seen file directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write seen file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace seen file: %w", err)
	}
	return nil
}

// LoadIDFile reads a newline-separated file of post IDs, skipping blank
// lines and '#' comments.
func LoadIDFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ID file: %w", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ID file: %w", err)
	}
	return ids, nil
}
