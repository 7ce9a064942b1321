package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSecretFrom(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db_password"), []byte("  s3cret\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty"), []byte("\n"), 0o600))

	got, err := ReadSecretFrom(dir, "db_password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	_, err = ReadSecretFrom(dir, "empty")
	assert.ErrorContains(t, err, "is empty")

	_, err = ReadSecretFrom(dir, "missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSecretOrEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db_password"), []byte("from-file"), 0o600))

	got, err := SecretOrEnv("from-env", dir, "db_password")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)

	got, err = SecretOrEnv("", dir, "db_password")
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)
}
