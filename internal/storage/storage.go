package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrInvalidName = errors.New("invalid artifact name")
	ErrNotFound    = errors.New("artifact not found")
)

// Artifact describes one exported file.
type Artifact struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArtifactStore keeps exported result files in a single flat directory.
type ArtifactStore struct {
	mu  sync.Mutex
	dir string
}

func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &ArtifactStore{dir: dir}, nil
}

func (s *ArtifactStore) Dir() string { return s.dir }

// ValidateName rejects names that could escape the store directory.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || strings.ContainsRune(name, 0) {
		return ErrInvalidName
	}
	return nil
}

// Write streams an artifact through fill. The file only becomes visible once
// fill succeeds.
func (s *ArtifactStore) Write(name string, fill func(w io.Writer) error) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := fill(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// Open returns a reader for name. The caller closes it.
func (s *ArtifactStore) Open(name string) (*os.File, Artifact, error) {
	if err := ValidateName(name); err != nil {
		return nil, Artifact{}, err
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Artifact{}, ErrNotFound
		}
		return nil, Artifact{}, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Artifact{}, err
	}
	if info.IsDir() {
		f.Close()
		return nil, Artifact{}, ErrNotFound
	}

	return f, Artifact{Name: name, Size: info.Size(), UpdatedAt: info.ModTime()}, nil
}

// List returns finished artifacts sorted by name.
func (s *ArtifactStore) List() ([]Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var out []Artifact
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Artifact{Name: e.Name(), Size: info.Size(), UpdatedAt: info.ModTime()})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
