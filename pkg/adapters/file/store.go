package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loom/pkg/document"
	"github.com/aretw0/loom/pkg/domain"
)

// Store implements ports.DocumentStore using the local filesystem.
// Each document is one file named after its ID, in YAML or JSON.
type Store struct {
	BasePath string
	Format   document.Format
}

// New creates a new Store with the given base path writing YAML files.
// If basePath is empty, it defaults to ".loom/documents".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".loom", "documents")
	}
	return &Store{BasePath: basePath, Format: document.FormatYAML}
}

func (s *Store) ext() string {
	if s.Format == document.FormatJSON {
		return ".json"
	}
	return ".yaml"
}

// Save persists the document atomically: it writes a temporary file in the
// same directory, syncs it and renames it over the destination.
func (s *Store) Save(ctx context.Context, doc *domain.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id cannot be empty")
	}
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure document directory: %w", err)
	}

	data, err := document.Marshal(doc, s.Format)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	destPath := filepath.Join(s.BasePath, doc.ID+s.ext())
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+doc.ID+"-*"+s.ext())
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing document for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads the document, accepting either format regardless of the one
// the store writes.
func (s *Store) Load(ctx context.Context, id string) (*domain.Document, error) {
	path, err := s.find(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to read document file: %w", err)
	}
	doc, err := document.Unmarshal(data, document.FormatOf(path))
	if err != nil {
		return nil, err
	}
	if doc.ID == "" {
		doc.ID = id
	}
	return doc, nil
}

func (s *Store) find(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("document id cannot be empty")
	}
	for _, ext := range []string{s.ext(), ".yaml", ".yml", ".json"} {
		path := filepath.Join(s.BasePath, id+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", domain.ErrDocumentNotFound
}

// Delete removes the document file.
func (s *Store) Delete(ctx context.Context, id string) error {
	path, err := s.find(id)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete document file: %w", err)
	}
	return nil
}

// List returns the IDs of all document files.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "tmp-") {
			continue
		}
		switch ext := filepath.Ext(name); ext {
		case ".yaml", ".yml", ".json":
			ids = append(ids, strings.TrimSuffix(name, ext))
		}
	}
	sort.Strings(ids)
	return ids, nil
}
