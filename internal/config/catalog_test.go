package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog_Defaults(t *testing.T) {
	catalog, err := LoadCatalog("")
	require.NoError(t, err)
	assert.NotEmpty(t, catalog.Categories)
	assert.True(t, catalog.HasCategory("Electronics"))
	assert.True(t, catalog.HasCategory("Other"))
	assert.False(t, catalog.HasCategory("Spaceships"))
}

func TestLoadCatalog_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := "categories:\n  - Books\n  - Records\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Books", "Records"}, catalog.Categories)
	assert.True(t, catalog.HasCategory("Books"))
	assert.False(t, catalog.HasCategory("Electronics"))
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog("/nonexistent/catalog.yaml")
	assert.Error(t, err)
}
