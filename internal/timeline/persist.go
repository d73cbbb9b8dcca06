package timeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
)

// JSONStore persists one JSON document per tracked file path under a base
// directory, mirroring the file's own path (src/main.go becomes
// {baseDir}/src/main.go.json). Writes are atomic: a temp file in the same
// directory is renamed over the target so a document is never observed
// half-written.
type JSONStore struct {
	baseDir string
}

// NewJSONStore creates a JSONStore rooted at the given directory.
// The directory will be created if it doesn't exist.
func NewJSONStore(baseDir string) (*JSONStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &JSONStore{baseDir: baseDir}, nil
}

// SaveTimeline writes the timeline document for a file path.
func (s *JSONStore) SaveTimeline(filePath string, t *FileTimeline) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode timeline: %w", err)
	}

	path := s.documentPath(filePath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create document directory: %w", err)
	}
	return atomicWriteFile(path, data, 0644)
}

// LoadAllTimelines walks the storage directory and decodes every timeline
// document. Corrupt documents are skipped rather than failing the load.
func (s *JSONStore) LoadAllTimelines() (map[string]*FileTimeline, error) {
	timelines := make(map[string]*FileTimeline)

	err := filepath.Walk(s.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		if filepath.Base(path) == indexFileName {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var t FileTimeline
		if err := json.Unmarshal(data, &t); err != nil {
			return nil
		}
		if t.FilePath == "" {
			return nil
		}
		if t.Views == nil {
			t.Views = make(map[string]*TaskFileView)
		}
		timelines[t.FilePath] = &t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load timelines: %w", err)
	}
	return timelines, nil
}

const indexFileName = "index.json"

// UpdateIndex rewrites the index of tracked paths. The index file is
// guarded by a cross-process file lock so concurrent driftline processes
// sharing a storage directory do not clobber each other.
func (s *JSONStore) UpdateIndex(paths []string) error {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	data, err := json.MarshalIndent(struct {
		Paths []string `json:"paths"`
	}{Paths: sorted}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	lock := flock.New(filepath.Join(s.baseDir, indexFileName+".lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock index: %w", err)
	}
	defer lock.Unlock() //nolint:errcheck

	return atomicWriteFile(filepath.Join(s.baseDir, indexFileName), data, 0644)
}

// documentPath maps a tracked file path to its document location.
// Cleaning against a synthetic root collapses any ".." components so the
// result always stays under baseDir.
func (s *JSONStore) documentPath(filePath string) string {
	clean := path.Clean("/" + filepath.ToSlash(filePath))
	clean = strings.TrimPrefix(clean, "/")
	return filepath.Join(s.baseDir, filepath.FromSlash(clean)+".json")
}

// atomicWriteFile writes data to path by creating a temporary file first,
// then renaming. This ensures the target file is never in a
// partially-written state.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
