package prd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ierr "github.com/mark3labs/prdloop/internal/errors"
	"github.com/mark3labs/prdloop/internal/logger"
)

// ErrNotFound is returned by Load when no PRD exists for a slug.
var ErrNotFound = errors.New("prd not found")

// Store reads and writes PRD documents under <dataDir>/tasks/<slug>/prd.json.
// Every invocation re-reads from disk; the store holds no document state.
type Store struct {
	dataDir string
}

// NewStore creates a Store rooted at the given data directory.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// TaskDir returns the directory holding a slug's PRD and ledger.
func (s *Store) TaskDir(slug string) string {
	return filepath.Join(s.dataDir, "tasks", slug)
}

// Path returns the PRD file path for a slug.
func (s *Store) Path(slug string) string {
	return filepath.Join(s.TaskDir(slug), "prd.json")
}

// Slugs lists every slug that has a PRD on disk, in directory order.
func (s *Store) Slugs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dataDir, "tasks"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading tasks directory: %w", err)
	}
	var slugs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(s.Path(e.Name())); err == nil {
			slugs = append(slugs, e.Name())
		}
	}
	return slugs, nil
}

// Load reads and parses the PRD for a slug. Returns ErrNotFound when the
// file does not exist and a ConfigError when the schema version is not one
// this build understands. The schema check happens here, before any caller
// gets a chance to mutate.
func (s *Store) Load(slug string) (*Document, error) {
	path := s.Path(slug)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading PRD: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing PRD %s: %w", path, err)
	}
	if doc.SchemaVersion != SchemaVersion {
		return nil, ierr.NewConfigError(
			"PRD %s has schema version %q, this build supports %q", path, doc.SchemaVersion, SchemaVersion)
	}

	logger.Debug("Loaded PRD for %s (%d requirements)", slug, len(doc.Requirements))
	return &doc, nil
}

// Persist writes the document atomically: marshal to a temp file in the
// same directory, fsync, then rename over the target. A reader never
// observes a partial document, and an interrupted write leaves the previous
// document intact.
func (s *Store) Persist(doc *Document) error {
	dir := s.TaskDir(doc.Slug)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating task directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling PRD: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, "prd-*.json.tmp")
	if err != nil {
		return fmt.Errorf("creating temp PRD file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp PRD file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp PRD file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp PRD file: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path(doc.Slug)); err != nil {
		return fmt.Errorf("replacing PRD file: %w", err)
	}

	logger.Debug("Persisted PRD for %s", doc.Slug)
	return nil
}
