package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"plain csv", "amazon_search_shoes.csv", true},
		{"xlsx", "flipkart_bulk_123.xlsx", true},
		{"empty", "", false},
		{"dot dot", "..", false},
		{"traversal", "../etc/passwd", false},
		{"subdir", "a/b.csv", false},
		{"windows sep", `a\b.csv`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidName)
			}
		})
	}
}

func TestArtifactStoreWriteAndOpen(t *testing.T) {
	store, err := NewArtifactStore(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	err = store.Write("a.csv", func(w io.Writer) error {
		_, err := io.WriteString(w, "hello")
		return err
	})
	require.NoError(t, err)

	f, art, err := store.Open("a.csv")
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(5), art.Size)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a.csv", list[0].Name)
}

func TestArtifactStoreFailedWriteLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	store, err := NewArtifactStore(dir)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.Write("b.csv", func(w io.Writer) error {
		io.WriteString(w, "partial")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, _, err = store.Open("b.csv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArtifactStoreOpenRejectsTraversal(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Open("../secret")
	assert.ErrorIs(t, err, ErrInvalidName)
}
