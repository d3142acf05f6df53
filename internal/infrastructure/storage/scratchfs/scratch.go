package scratchfs

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/akulikov/autograder/internal/core/domain"
	"github.com/akulikov/autograder/internal/core/ports"
)

// Store hands out one temp directory per submission under a shared base.
// Releasing a scratch removes its directory recursively, so nothing survives
// a processing run regardless of how it ended.
type Store struct {
	basePath string
	logger   *slog.Logger
}

func New(basePath string, logger *slog.Logger) (*Store, error) {
	if basePath == "" {
		basePath = "./data/scratch"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch base dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{basePath: basePath, logger: logger}, nil
}

func (s *Store) Acquire(submissionID string) (ports.Scratch, error) {
	dir, err := os.MkdirTemp(s.basePath, submissionID+"-")
	if err != nil {
		return nil, domain.WrapError(domain.ErrScratchUnavailable, "acquire scratch", err)
	}
	return &scratch{dir: dir, logger: s.logger}, nil
}

type scratch struct {
	dir    string
	logger *slog.Logger
}

func (s *scratch) Put(name string, data io.Reader) (string, error) {
	path := filepath.Join(s.dir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	return path, nil
}

func (s *scratch) Release() {
	if err := os.RemoveAll(s.dir); err != nil {
		s.logger.Warn("scratch release failed", "dir", s.dir, "error", err)
	}
}
