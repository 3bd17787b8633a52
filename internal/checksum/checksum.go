// Package checksum computes the content fingerprint used for duplicate detection.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

const chunkSize = 8 * 1024

// Digest accumulates a checksum incrementally. It is an io.Writer so it can
// sit behind an io.MultiWriter while content is staged.
type Digest struct {
	h hash.Hash
}

// New starts a digest seeded with the UTF-8 bytes of name.
func New(name string) *Digest {
	h := md5.New()
	h.Write([]byte(name))
	return &Digest{h: h}
}

func (d *Digest) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

// Sum returns the lower-case hex digest of everything written so far.
func (d *Digest) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// Compute returns the digest of name followed by the full content of r. The
// stream is consumed in fixed-size chunks.
func Compute(name string, r io.Reader) (string, error) {
	d := New(name)
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(d, r, buf); err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return d.Sum(), nil
}

// ComputeFile is Compute over a file on disk.
func ComputeFile(name, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Compute(name, f)
}
