package csvstore

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toyofumi/opendata/spider"
)

func TestNewRequiresPath(t *testing.T) {
	_, err := New()
	assert.Error(t, err)
}

func TestFlushWritesUnionColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "records.csv")
	store, err := New(WithPath(path))
	require.NoError(t, err)

	a := spider.NewRecord()
	a.Set("url", "https://example.com/1")
	a.Set("name", "one")

	b := spider.NewRecord()
	b.Set("url", "https://example.com/2")
	b.SetAll("tags", []string{"x", "y"})

	require.NoError(t, store.Save(a, b))
	require.NoError(t, store.Flush())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"name", "tags", "url"}, rows[0])
	assert.Equal(t, []string{"one", "", "https://example.com/1"}, rows[1])
	assert.Equal(t, []string{"", `["x","y"]`, "https://example.com/2"}, rows[2])
}

func TestFlushIDColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.csv")
	store, err := New(WithPath(path), WithIDColumn(true))
	require.NoError(t, err)

	for _, name := range []string{"one", "two"} {
		rec := spider.NewRecord()
		rec.Set("name", name)
		require.NoError(t, store.Save(rec))
	}
	require.NoError(t, store.Flush())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "name"}, rows[0])
	assert.Equal(t, []string{"1", "one"}, rows[1])
	assert.Equal(t, []string{"2", "two"}, rows[2])
}

func TestFlushEmptyBufferIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.csv")
	store, err := New(WithPath(path))
	require.NoError(t, err)

	require.NoError(t, store.Flush())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
