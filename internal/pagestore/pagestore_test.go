package pagestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSavePage_PrettyPrintsAndNumbers(t *testing.T) {
	s := New(t.TempDir())

	path, err := s.SavePage("github", "2024-01-15", 1, []byte(`[{"id":1}]`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "raw", "github", "2024-01-15", "response_001.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"id\": 1\n  }\n]", string(data))
}

func TestSavePage_RejectsInvalidJSON(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.SavePage("github", "2024-01-15", 1, []byte(`{broken`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestListPages_SortedAndMissingDir(t *testing.T) {
	s := New(t.TempDir())

	paths, err := s.ListPages("github", "2024-01-15")
	require.NoError(t, err)
	assert.Empty(t, paths)

	for seq := 3; seq >= 1; seq-- {
		_, err := s.SavePage("github", "2024-01-15", seq, []byte(`{}`))
		require.NoError(t, err)
	}

	paths, err = s.ListPages("github", "2024-01-15")
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Contains(t, paths[0], "response_001.json")
	assert.Contains(t, paths[2], "response_003.json")
}

func TestLoadRows_ObjectAndArrayPages(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.SavePage("api", "2024-01-15", 1, []byte(`[{"id":1},{"id":2}]`))
	require.NoError(t, err)
	_, err = s.SavePage("api", "2024-01-15", 2, []byte(`{"id":3}`))
	require.NoError(t, err)

	rows, err := s.LoadRows("api", "2024-01-15")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, float64(1), rows[0]["id"])
	assert.Equal(t, float64(3), rows[2]["id"])
}

func TestLoadRows_RejectsScalarPage(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.SavePage("api", "2024-01-15", 1, []byte(`42`))
	require.NoError(t, err)

	_, err = s.LoadRows("api", "2024-01-15")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither object nor array")
}

func TestLoadRows_EmptyPartition(t *testing.T) {
	s := New(t.TempDir())
	rows, err := s.LoadRows("api", "2024-01-15")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWriteInvalid(t *testing.T) {
	s := New(t.TempDir())

	path, err := s.WriteInvalid("api", "2024-01-15", "invalid_rows.json", []map[string]any{{"id": 1}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "invalid", "api", "2024-01-15", "invalid_rows.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id": 1`)
}
