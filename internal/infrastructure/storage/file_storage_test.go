package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *LocalDocumentStore {
	t.Helper()
	return NewLocalDocumentStore(t.TempDir(), zap.NewNop()).(*LocalDocumentStore)
}

func TestStoreAndRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	path, err := store.Store(ctx, []byte("report body"), "q1.pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, path)
	assert.True(t, store.Exists(ctx, path))

	content, err := store.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("report body"), content)
}

func TestStoreAvoidsNameCollisions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p1, err := store.Store(ctx, []byte("first"), "report.pdf")
	require.NoError(t, err)
	p2, err := store.Store(ctx, []byte("second"), "report.pdf")
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2)

	c1, err := store.Read(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), c1)
}

func TestReadRejectsPathTraversal(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Read(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
}

func TestStoreSanitizesSuggestedName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		suggested string
	}{
		{"path components stripped", "../../evil.pdf"},
		{"empty name", ""},
		{"whitespace only", "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := store.Store(ctx, []byte("x"), tt.suggested)
			require.NoError(t, err)
			assert.True(t, store.Exists(ctx, path))
		})
	}
}

func TestExistsOnMissingPath(t *testing.T) {
	store := newTestStore(t)
	assert.False(t, store.Exists(context.Background(), "nope/missing.pdf"))
}
