package service

import (
	"fmt"
	"io"
	"os"

	"github.com/weiwangfds/filevault/internal/checksum"
	"github.com/weiwangfds/filevault/internal/logger"
)

// stagedFile is upload content spooled to disk so it can be hashed, sniffed
// and sent to storage without holding it in memory.
type stagedFile struct {
	path     string
	size     int64
	checksum string
}

func (s *fileService) stage(name string, content io.Reader) (*stagedFile, error) {
	if err := os.MkdirAll(s.config.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	tempFile, err := os.CreateTemp(s.config.TempDir, "filevault-upload-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	digest := checksum.New(name)
	size, copyErr := io.Copy(io.MultiWriter(tempFile, digest), content)
	closeErr := tempFile.Close()

	staged := &stagedFile{path: tempFile.Name(), size: size}
	if copyErr != nil {
		staged.remove()
		return nil, fmt.Errorf("write temp file: %w", copyErr)
	}
	if closeErr != nil {
		staged.remove()
		return nil, fmt.Errorf("close temp file: %w", closeErr)
	}

	staged.checksum = digest.Sum()
	return staged, nil
}

func (f *stagedFile) remove() {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		logger.Warnf("failed to remove temp file %s: %v", f.path, err)
	}
}
