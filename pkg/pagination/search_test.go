package pagination

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
)

func seedSearch(t *testing.T) docstore.Store {
	t.Helper()
	store := docstore.NewMemoryStore()
	docs := map[string]string{
		"+27820000001": "Alice",
		"+27820000002": "Albert",
		"+27831112222": "Bob",
		"+27841112223": "alan",
		"+27850000003": "Carol",
	}
	for key, name := range docs {
		require.NoError(t, store.Set(context.Background(), "guests/"+key, map[string]any{"name": name}))
	}
	return store
}

func TestEngine_Search(t *testing.T) {
	engine := NewEngine(seedSearch(t), getTestLogger(), 0)

	t.Run("prefix", func(t *testing.T) {
		page, err := engine.Search(context.Background(), SearchRequest{Collection: "guests", Field: "name", Term: "Al"})
		require.NoError(t, err)
		assert.Equal(t, []string{"+27820000002", "+27820000001"}, keysOf(page.Items))
		assert.Equal(t, ModeSearch, page.Mode)
		assert.False(t, page.HasMore)
		assert.False(t, page.Truncated)
	})

	t.Run("prefix merged with key substring", func(t *testing.T) {
		page, err := engine.Search(context.Background(), SearchRequest{Collection: "guests", Field: "name", Term: "Al", KeySubstring: "1112"})
		require.NoError(t, err)
		assert.Equal(t, []string{"+27820000002", "+27820000001", "+27831112222", "+27841112223"}, keysOf(page.Items))
	})

	t.Run("key substring deduplicates", func(t *testing.T) {
		page, err := engine.Search(context.Background(), SearchRequest{Collection: "guests", Field: "name", Term: "Alice", KeySubstring: "2782000"})
		require.NoError(t, err)
		assert.Equal(t, []string{"+27820000001", "+27820000002"}, keysOf(page.Items))
	})

	t.Run("no matches", func(t *testing.T) {
		page, err := engine.Search(context.Background(), SearchRequest{Collection: "guests", Field: "name", Term: "Zoe"})
		require.NoError(t, err)
		assert.NotNil(t, page.Items)
		assert.Empty(t, page.Items)
	})
}

func TestEngine_Search_Truncates(t *testing.T) {
	engine := NewEngine(seedSearch(t), getTestLogger(), 2)

	page, err := engine.Search(context.Background(), SearchRequest{Collection: "guests", KeySubstring: "+278"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.Truncated)
}

func TestEngine_Search_Validation(t *testing.T) {
	engine := NewEngine(docstore.NewMemoryStore(), getTestLogger(), 0)

	_, err := engine.Search(context.Background(), SearchRequest{Field: "name", Term: "a"})
	assert.True(t, apperrors.IsValidation(err))

	_, err = engine.Search(context.Background(), SearchRequest{Collection: "guests", Field: "name"})
	assert.True(t, apperrors.IsValidation(err))

	_, err = engine.Search(context.Background(), SearchRequest{Collection: "guests", Term: "a"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestCursorToken(t *testing.T) {
	cursor := &docstore.Cursor{Key: "+27820000001", Value: "Alice"}

	decoded, err := DecodeCursor(EncodeCursor(cursor))
	require.NoError(t, err)
	assert.Equal(t, cursor, decoded)

	empty, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, empty)
	assert.Equal(t, "", EncodeCursor(nil))

	_, err = DecodeCursor("not base64!")
	assert.True(t, apperrors.IsValidation(err))
}
