package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestCompute(t *testing.T) {
	t.Run("name seeds the digest", func(t *testing.T) {
		sum, err := Compute("a.txt", strings.NewReader("hello"))
		require.NoError(t, err)

		expected := md5.Sum([]byte("a.txthello"))
		assert.Equal(t, hex.EncodeToString(expected[:]), sum)
		assert.Len(t, sum, 32)
	})

	t.Run("same content different name differs", func(t *testing.T) {
		a, err := Compute("a.txt", strings.NewReader("hello"))
		require.NoError(t, err)
		b, err := Compute("b.txt", strings.NewReader("hello"))
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("deterministic", func(t *testing.T) {
		a, _ := Compute("x", strings.NewReader("payload"))
		b, _ := Compute("x", strings.NewReader("payload"))
		assert.Equal(t, a, b)
	})

	t.Run("empty content", func(t *testing.T) {
		sum, err := Compute("", strings.NewReader(""))
		require.NoError(t, err)
		assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", sum)
	})

	t.Run("content larger than one chunk", func(t *testing.T) {
		content := strings.Repeat("0123456789", 3*chunkSize/10+7)
		sum, err := Compute("big.bin", strings.NewReader(content))
		require.NoError(t, err)

		expected := md5.Sum([]byte("big.bin" + content))
		assert.Equal(t, hex.EncodeToString(expected[:]), sum)
	})

	t.Run("read failure", func(t *testing.T) {
		_, err := Compute("a", failingReader{})
		assert.Error(t, err)
	})
}

func TestDigestMatchesCompute(t *testing.T) {
	d := New("a.txt")
	_, _ = d.Write([]byte("hel"))
	_, _ = d.Write([]byte("lo"))

	sum, err := Compute("a.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, sum, d.Sum())
}

func TestComputeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staged")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	fromFile, err := ComputeFile("a.txt", path)
	require.NoError(t, err)
	fromReader, err := Compute("a.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, fromReader, fromFile)

	_, err = ComputeFile("a.txt", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
