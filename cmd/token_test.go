package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrolock/internal/service"
)

func runToken(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := newTokenCmd()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&out)
	c.SetArgs(append([]string{"generate"}, args...))
	err := c.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestTokenGenerate_Stdout(t *testing.T) {
	token, err := runToken(t)
	require.NoError(t, err)
	assert.Len(t, token, 22)
}

func TestTokenGenerate_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.txt")
	token, err := runToken(t, "--out", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, token, strings.TrimSpace(string(data)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(tokenFileMode), info.Mode().Perm())
}

func TestTokenGenerate_WritesHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.txt")
	token, err := runToken(t, "--out", path, "--hash")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	stored := strings.TrimSpace(string(data))
	assert.True(t, strings.HasPrefix(stored, "$2"))
	assert.True(t, service.Authorize("Bearer "+token, stored))
}

func TestTokenGenerate_HashNeedsOut(t *testing.T) {
	_, err := runToken(t, "--hash")
	assert.Error(t, err)
}
