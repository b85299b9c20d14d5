package artifact

// ============================================================================
// Responsibilities:
// 1. Write session artifacts (rendered surfaces, exported timing tables)
//    into one output directory
// 2. Atomic writes (temp file + rename) so a reader never sees a half file
// 3. Optionally keep the previous version of a file as a timestamped backup
// ============================================================================

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	ErrEmptyName   = errors.New("artifact name is empty")
	ErrInvalidName = errors.New("artifact name must be a plain file name")
)

// Store writes artifacts into a directory.
type Store struct {
	dir    string
	backup bool
	mu     sync.Mutex
	now    func() time.Time
}

// NewStore returns a store rooted at dir. With backup set, an existing file
// is renamed to "<name>.<timestamp>" before being replaced.
func NewStore(dir string, backup bool) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{dir: dir, backup: backup, now: time.Now}
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns where an artifact with the given name is written.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether the artifact is on disk.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Save writes content under name and returns the final path.
func (s *Store) Save(name string, content []byte) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}

	path := s.Path(name)
	if s.backup {
		if _, err := os.Stat(path); err == nil {
			backupPath := fmt.Sprintf("%s.%s", path, s.now().Format("20060102_150405"))
			if err := os.Rename(path, backupPath); err != nil {
				return "", fmt.Errorf("failed to back up %s: %w", name, err)
			}
		}
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp artifact: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to chmod artifact: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to rename artifact: %w", err)
	}
	return path, nil
}

func checkName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
