package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecoregula/permitflow/internal/application/port"
)

// LocalDocumentStore implements port.DocumentStore on the local filesystem
type LocalDocumentStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalDocumentStore creates a new LocalDocumentStore
func NewLocalDocumentStore(baseDir string, logger *zap.Logger) port.DocumentStore {
	return &LocalDocumentStore{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Store writes content under a collision-free name derived from suggestedName
// and returns the relative storage path
func (s *LocalDocumentStore) Store(ctx context.Context, content []byte, suggestedName string) (string, error) {
	name := sanitizeName(suggestedName)
	relPath := filepath.Join(uuid.New().String()[:8], name)
	fullPath := filepath.Join(s.baseDir, relPath)

	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", filepath.Dir(fullPath)),
			zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write document",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write document: %w", err)
	}

	s.logger.Debug("Document stored",
		zap.String("path", relPath),
		zap.Int("size", len(content)))

	return relPath, nil
}

// Read reads a document by its relative storage path
func (s *LocalDocumentStore) Read(ctx context.Context, path string) ([]byte, error) {
	fullPath := filepath.Join(s.baseDir, path)

	if err := s.validatePath(fullPath); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		s.logger.Error("Failed to read document",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	return content, nil
}

// Exists checks whether a document exists at the relative storage path
func (s *LocalDocumentStore) Exists(ctx context.Context, path string) bool {
	_, err := os.Stat(filepath.Join(s.baseDir, path))
	return err == nil
}

// validatePath checks that the path stays within baseDir
func (s *LocalDocumentStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "document"
	}
	return name
}
