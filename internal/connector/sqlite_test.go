package connector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamsynth/internal/model"
	"streamsynth/internal/store"
)

func TestSQLiteSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	sink, err := NewSQLiteSink(map[string]interface{}{"path": path})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, map[string]interface{}{"code": 404}))
	require.NoError(t, sink.Write(ctx, float64(7)))
	require.NoError(t, sink.Close(ctx))

	db, err := store.Open(path)
	require.NoError(t, err)
	defer db.Close()

	events, err := db.ListEvents()
	require.NoError(t, err)
	assert.Equal(t, []model.Event{map[string]interface{}{"code": float64(404)}, float64(7)}, events)

	_, err = NewSQLiteSink(map[string]interface{}{})
	assert.Error(t, err)
}
