// Package image persists downloaded images and reads back what was saved.
package image

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/manash/pollgen/internal/security"
	"github.com/manash/pollgen/pkg/models"
)

const (
	copyBufferSize = 32 * 1024
	maxNameTries   = 100
)

type Saver struct {
	dir    string
	format models.OutputFormat
	logger *zap.Logger
	now    func() time.Time
}

func NewSaver(dir string, format models.OutputFormat, logger *zap.Logger) *Saver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !format.IsValid() {
		format = models.FormatPNG
	}
	return &Saver{dir: dir, format: format, logger: logger, now: time.Now}
}

// WithClock replaces the time source used for filename timestamps.
func (s *Saver) WithClock(now func() time.Time) *Saver {
	s.now = now
	return s
}

func (s *Saver) Dir() string {
	return s.dir
}

// Save streams r into a new file named after label. An existing file is
// never overwritten; a numeric suffix is added instead. Partially written
// files are removed on failure.
func (s *Saver) Save(r io.Reader, label string) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", s.dir, err)
	}

	f, path, err := s.create(Filename(label, s.now(), s.format))
	if err != nil {
		return "", err
	}

	buf := make([]byte, copyBufferSize)
	n, err := io.CopyBuffer(f, r, buf)
	if err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	s.logger.Info("image saved", zap.String("path", path), zap.Int64("bytes", n))
	return path, nil
}

func (s *Saver) create(name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 1; i <= maxNameTries; i++ {
		candidate := name
		if i > 1 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path, err := security.JoinWithin(s.dir, candidate)
		if err != nil {
			return nil, "", err
		}

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("failed to create %s: too many files with the same name", name)
}
