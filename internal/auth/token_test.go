package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateToken_WhenNoFile_CreatesNewToken(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")

	token, err := LoadOrCreateToken(dir)
	require.NoError(t, err)

	assert.Len(t, token, 64, "token should be 64 hex chars (32 bytes)")
	assertHexString(t, token)

	info, err := os.Stat(filepath.Join(dir, tokenFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadOrCreateToken_WhenFileExists_ReturnsTrimmedExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, tokenFileName), []byte("  handwritten-token\n"), 0600))

	token, err := LoadOrCreateToken(dir)
	require.NoError(t, err)
	assert.Equal(t, "handwritten-token", token)
}

func TestLoadOrCreateToken_CalledTwice_ReturnsSameToken(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	first, err := LoadOrCreateToken(dir)
	require.NoError(t, err)
	second, err := LoadOrCreateToken(dir)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLoadOrCreateToken_WhenBlankFile_GeneratesNew(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, tokenFileName), []byte(" \n"), 0600))

	token, err := LoadOrCreateToken(dir)
	require.NoError(t, err)
	assert.Len(t, token, 64)
}

func TestRotateToken_GeneratesDifferentToken(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	original, err := LoadOrCreateToken(dir)
	require.NoError(t, err)
	rotated, err := RotateToken(dir)
	require.NoError(t, err)

	assert.NotEqual(t, original, rotated)
	assertHexString(t, rotated)

	reloaded, err := LoadOrCreateToken(dir)
	require.NoError(t, err)
	assert.Equal(t, rotated, reloaded)
}

func TestResolveToken(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	token, err := ResolveToken("", dir)
	require.NoError(t, err)
	assert.Empty(t, token)

	token, err = ResolveToken("static", dir)
	require.NoError(t, err)
	assert.Equal(t, "static", token)

	token, err = ResolveToken(Auto, dir)
	require.NoError(t, err)
	assert.Len(t, token, 64)
	_, err = os.Stat(filepath.Join(dir, tokenFileName))
	assert.NoError(t, err)
}

func assertHexString(t *testing.T, s string) {
	t.Helper()
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Errorf("non-hex character %q in string %q", c, s)
			return
		}
	}
}
