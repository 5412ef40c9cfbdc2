package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashContent_IsDeterministic(t *testing.T) {
	a := HashContent([]byte("hello world"))
	b := HashContent([]byte("hello world"))
	c := HashContent([]byte("hello there"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestUpsertContent_FirstInsertIsCreated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, created, err := s.UpsertContent(ctx, UpsertContentInput{
		Kind:     ContentKindText,
		Filename: "note.txt",
		Title:    "Note",
		Hash:     HashContent([]byte("body")),
		Size:     4,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)
}

func TestUpsertContent_SameHashAndKind_Dedupes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	hash := HashContent([]byte("body"))

	id1, created1, err := s.UpsertContent(ctx, UpsertContentInput{
		Kind: ContentKindText, Hash: hash, Size: 4, Title: "v1",
	})
	require.NoError(t, err)
	require.True(t, created1)

	id2, created2, err := s.UpsertContent(ctx, UpsertContentInput{
		Kind: ContentKindText, Hash: hash, Size: 4, Title: "v2",
	})
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, id1, id2)

	rec, err := s.GetContent(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "v2", rec.Title)
}

func TestUpsertContent_SameHashDifferentKind_IsDistinct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	hash := HashContent([]byte("body"))

	id1, _, err := s.UpsertContent(ctx, UpsertContentInput{Kind: ContentKindText, Hash: hash, Size: 4})
	require.NoError(t, err)
	id2, _, err := s.UpsertContent(ctx, UpsertContentInput{Kind: ContentKindMarkdown, Hash: hash, Size: 4})
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
}

func TestGetContent_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetContent(context.Background(), "missing")
	require.Error(t, err)
}

func TestSetContentStatus_StampsProcessedAtOnTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _, err := s.UpsertContent(ctx, UpsertContentInput{Kind: ContentKindText, Hash: HashContent([]byte("x")), Size: 1})
	require.NoError(t, err)

	require.NoError(t, s.SetContentStatus(ctx, id, ContentStatusCompleted))

	rec, err := s.GetContent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ContentStatusCompleted, rec.Status)
	require.NotNil(t, rec.ProcessedAt)
}

func TestSetContentStatus_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.SetContentStatus(context.Background(), "missing", ContentStatusFailed)
	require.Error(t, err)
}

func TestInsertChunksAndGetChunksForContent_OrderedByIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _, err := s.UpsertContent(ctx, UpsertContentInput{Kind: ContentKindText, Hash: HashContent([]byte("x")), Size: 1})
	require.NoError(t, err)

	err = s.Tx(ctx, func(tx *sql.Tx) error {
		return InsertChunks(ctx, tx, id, []ChunkRecord{
			{Index: 1, Text: "second"},
			{Index: 0, Text: "first"},
		})
	})
	require.NoError(t, err)

	chunks, err := s.GetChunksForContent(ctx, id)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "first", chunks[0].Text)
	assert.Equal(t, "second", chunks[1].Text)
}

func TestInsertChunks_ReplacesPriorChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _, err := s.UpsertContent(ctx, UpsertContentInput{Kind: ContentKindText, Hash: HashContent([]byte("x")), Size: 1})
	require.NoError(t, err)

	run := func(texts ...string) {
		chunks := make([]ChunkRecord, len(texts))
		for i, text := range texts {
			chunks[i] = ChunkRecord{Index: i, Text: text}
		}
		require.NoError(t, s.Tx(ctx, func(tx *sql.Tx) error {
			return InsertChunks(ctx, tx, id, chunks)
		}))
	}

	run("a", "b", "c")
	run("only")

	chunks, err := s.GetChunksForContent(ctx, id)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "only", chunks[0].Text)
}

func TestDeleteContent_CascadesChunksButNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _, err := s.UpsertContent(ctx, UpsertContentInput{Kind: ContentKindText, Hash: HashContent([]byte("x")), Size: 1})
	require.NoError(t, err)

	require.NoError(t, s.Tx(ctx, func(tx *sql.Tx) error {
		return InsertChunks(ctx, tx, id, []ChunkRecord{{Index: 0, Text: "hi"}})
	}))

	require.NoError(t, s.DeleteContent(ctx, id))

	_, err = s.GetContent(ctx, id)
	require.Error(t, err)

	chunks, err := s.GetChunksForContent(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestDeleteContent_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.DeleteContent(context.Background(), "missing")
	require.Error(t, err)
}
