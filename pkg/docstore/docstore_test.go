package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinharvest/internal/downloader"
	"pinharvest/pkg/errors"
	"pinharvest/pkg/extract"
)

func TestUpsertConverges(t *testing.T) {
	store := OpenMemory(t)
	ctx := context.Background()

	doc := map[string]any{"name": "first"}
	require.NoError(t, store.Upsert(ctx, "pin", "k1", doc))
	require.NoError(t, store.Upsert(ctx, "pin", "k1", map[string]any{"name": "second"}))
	require.NoError(t, store.Upsert(ctx, "pin", "k1", map[string]any{"name": "second"}))

	n, err := store.Count(ctx, "pin")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	loaded, err := store.Find(ctx, "pin", "k1")
	require.NoError(t, err)
	assert.Equal(t, "second", loaded["name"])
}

func TestCollectionsAreIsolated(t *testing.T) {
	store := OpenMemory(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "pin", "k1", map[string]any{"a": 1}))
	require.NoError(t, store.Upsert(ctx, "board", "k1", map[string]any{"b": 2}))

	pin, err := store.Find(ctx, "pin", "k1")
	require.NoError(t, err)
	assert.Contains(t, pin, "a")

	board, err := store.Find(ctx, "board", "k1")
	require.NoError(t, err)
	assert.Contains(t, board, "b")
}

func TestFindMissingDocument(t *testing.T) {
	store := OpenMemory(t)
	_, err := store.Find(context.Background(), "pin", "nope")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestUpsertRejectsEmptyKey(t *testing.T) {
	store := OpenMemory(t)
	err := store.Upsert(context.Background(), "pin", "", map[string]any{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePersistence))
}

func TestKeysAndHasKey(t *testing.T) {
	store := OpenMemory(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "pin", "b", map[string]any{}))
	require.NoError(t, store.Upsert(ctx, "pin", "a", map[string]any{}))

	keys, err := store.Keys(ctx, "pin")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	assert.True(t, store.HasKey("pin", "a"))
	assert.False(t, store.HasKey("pin", "z"))
	assert.False(t, store.HasKey("board", "a"))
}

func TestGatewayUpsertRecord(t *testing.T) {
	store := OpenMemory(t)
	gateway := NewGateway(store)
	ctx := context.Background()

	rec := &extract.PinRecord{
		ItemKey:     "pinterest.com/pin/1",
		Description: "a chair",
		Images:      []extract.MediaReference{{SourceURL: "https://img.example.com/a.jpg"}},
		Complete:    true,
	}
	require.NoError(t, gateway.UpsertRecord(ctx, rec))
	// Replays converge on one document.
	require.NoError(t, gateway.UpsertRecord(ctx, rec))

	n, err := store.Count(ctx, extract.KindPin)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	doc, err := store.Find(ctx, extract.KindPin, "pinterest.com/pin/1")
	require.NoError(t, err)
	assert.Equal(t, "a chair", doc["description"])
	assert.Equal(t, true, doc["complete"])
}

func TestGatewayUpsertManyContinuesPastFailures(t *testing.T) {
	store := OpenMemory(t)
	gateway := NewGateway(store)

	records := []extract.Record{
		&extract.PinRecord{ItemKey: "k1"},
		&extract.PinRecord{ItemKey: ""}, // empty key fails
		&extract.PinRecord{ItemKey: "k3"},
	}

	persisted, err := gateway.UpsertMany(context.Background(), records)
	assert.Equal(t, 2, persisted)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePersistence))
}

func TestGatewayUpsertFetchOutcomes(t *testing.T) {
	store := OpenMemory(t)
	gateway := NewGateway(store)
	ctx := context.Background()

	outcomes := []downloader.Outcome{
		{
			Ref:       extract.MediaReference{SourceURL: "https://img.example.com/a.jpg", OwnerKey: "k1"},
			Success:   true,
			LocalPath: "/media/abc.jpg",
			Size:      1024,
		},
		{
			Ref: extract.MediaReference{SourceURL: "https://img.example.com/b.jpg", OwnerKey: "k1"},
			Err: errors.NewFetchError("unexpected status", 404, nil),
		},
	}
	require.NoError(t, gateway.UpsertFetchOutcomes(ctx, outcomes))

	ok, err := store.Find(ctx, MediaCollection, "https://img.example.com/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, true, ok["success"])
	assert.Equal(t, "/media/abc.jpg", ok["local_path"])

	failed, err := store.Find(ctx, MediaCollection, "https://img.example.com/b.jpg")
	require.NoError(t, err)
	assert.Equal(t, false, failed["success"])
	assert.Contains(t, failed["error"], "unexpected status")
}
