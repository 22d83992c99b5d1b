package biz

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestFingerprintStable(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	a := writeTempFile(t, "a.pdf", data)
	b := writeTempFile(t, "b.pdf", data)

	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)

	assert.Equal(t, fpA, fpB)
	assert.Len(t, fpA, 32)
}

func TestFingerprintDetectsChange(t *testing.T) {
	a := writeTempFile(t, "a.pdf", []byte("content one"))
	b := writeTempFile(t, "b.pdf", []byte("content two"))

	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)

	assert.NotEqual(t, fpA, fpB)
}

func TestFingerprintDetectsTailChange(t *testing.T) {
	// Two files that agree on the first 64 KiB and on size, differing
	// only past the sampled head.
	base := bytes.Repeat([]byte("x"), fingerprintSample+1024)
	other := append([]byte(nil), base...)
	other[len(other)-1] = 'y'

	a := writeTempFile(t, "a.pdf", base)
	b := writeTempFile(t, "b.pdf", other)

	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)

	assert.NotEqual(t, fpA, fpB)
}

func TestFingerprintDetectsSizeChange(t *testing.T) {
	// Same head, different length.
	a := writeTempFile(t, "a.pdf", bytes.Repeat([]byte("x"), fingerprintSample+10))
	b := writeTempFile(t, "b.pdf", bytes.Repeat([]byte("x"), fingerprintSample+20))

	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)

	assert.NotEqual(t, fpA, fpB)
}

func TestFingerprintMissingFile(t *testing.T) {
	_, err := Fingerprint(filepath.Join(t.TempDir(), "absent.pdf"))
	assert.Error(t, err)
}
