package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DB_HOST", "DB_NAME", "DB_USER", "DB_PASS", "GEMINI_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestRootHasSubcommands(t *testing.T) {
	root := NewRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "ingest")
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestServeRefusesToStartWithoutEnv(t *testing.T) {
	clearEnv(t)

	root := NewRootCmd()
	root.SetArgs([]string{"serve"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_HOST")
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestIngestRequiresReadableImage(t *testing.T) {
	clearEnv(t)

	root := NewRootCmd()
	root.SetArgs([]string{"ingest", filepath.Join(t.TempDir(), "missing.jpg")})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read image")
}

func TestIngestRefusesToStartWithoutEnv(t *testing.T) {
	clearEnv(t)
	image := filepath.Join(t.TempDir(), "cover.jpg")
	require.NoError(t, os.WriteFile(image, []byte("jpeg"), 0o600))

	root := NewRootCmd()
	root.SetArgs([]string{"ingest", image})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PASS")
}
