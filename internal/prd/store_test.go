package prd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ierr "github.com/mark3labs/prdloop/internal/errors"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	doc := testDocument()

	if err := store.Persist(doc); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	loaded, err := store.Load("user-auth")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Title != doc.Title || len(loaded.Requirements) != 3 {
		t.Errorf("loaded document does not match: %+v", loaded)
	}
	if loaded.Requirements[0].AcceptanceCriteria[0] != "returns 200 on valid creds" {
		t.Errorf("criteria not preserved: %v", loaded.Requirements[0].AcceptanceCriteria)
	}
}

func TestStoreLoadNotFound(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Load("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreSchemaVersionCheck(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	path := store.Path("old-feature")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	content := `{"schemaVersion":"2.0","slug":"old-feature","title":"x","requirements":[]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := store.Load("old-feature")
	var cfgErr *ierr.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for schema mismatch, got %v", err)
	}
}

func TestStorePersistLeavesNoTempFiles(t *testing.T) {
	store := NewStore(t.TempDir())
	doc := testDocument()
	if err := store.Persist(doc); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if err := store.Persist(doc); err != nil {
		t.Fatalf("second Persist failed: %v", err)
	}

	entries, err := os.ReadDir(store.TaskDir("user-auth"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("expected only prd.json, found %d entries", len(entries))
	}
}

func TestStorePersistOverwrites(t *testing.T) {
	store := NewStore(t.TempDir())
	doc := testDocument()
	if err := store.Persist(doc); err != nil {
		t.Fatal(err)
	}

	doc.Requirements[0].Status = StatusDone
	if err := store.Persist(doc); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load("user-auth")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Requirements[0].Status != StatusDone {
		t.Errorf("overwrite not visible, status = %s", loaded.Requirements[0].Status)
	}
}

func TestStoreSlugs(t *testing.T) {
	store := NewStore(t.TempDir())
	if slugs, err := store.Slugs(); err != nil || slugs != nil {
		t.Fatalf("empty store: slugs=%v err=%v", slugs, err)
	}

	for _, s := range []string{"alpha", "beta"} {
		doc := testDocument()
		doc.Slug = s
		if err := store.Persist(doc); err != nil {
			t.Fatal(err)
		}
	}

	slugs, err := store.Slugs()
	if err != nil {
		t.Fatal(err)
	}
	if len(slugs) != 2 {
		t.Fatalf("expected 2 slugs, got %v", slugs)
	}
}
