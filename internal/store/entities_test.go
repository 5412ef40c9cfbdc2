package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upsertEntity(t *testing.T, s *Store, in UpsertEntityInput) string {
	t.Helper()
	var id string
	require.NoError(t, s.Tx(context.Background(), func(tx *sql.Tx) error {
		var err error
		id, err = UpsertEntity(context.Background(), tx, in)
		return err
	}))
	return id
}

func TestUpsertEntity_FirstSightingInserts(t *testing.T) {
	s := newTestStore(t)
	id := upsertEntity(t, s, UpsertEntityInput{Name: "Ada Lovelace", Type: EntityTypePerson})
	assert.NotEmpty(t, id)

	e, err := s.GetEntity(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", e.Name)
}

func TestUpsertEntity_SecondSightingMergesAndKeepsIdentity(t *testing.T) {
	s := newTestStore(t)
	id1 := upsertEntity(t, s, UpsertEntityInput{Name: "Ada Lovelace", Type: EntityTypePerson})
	id2 := upsertEntity(t, s, UpsertEntityInput{Name: "Ada Lovelace", Type: EntityTypePerson, Description: "mathematician"})

	assert.Equal(t, id1, id2)

	e, err := s.GetEntity(context.Background(), id1)
	require.NoError(t, err)
	assert.Equal(t, "mathematician", e.Description)
}

func TestUpsertEntity_SameNameDifferentType_IsDistinct(t *testing.T) {
	s := newTestStore(t)
	id1 := upsertEntity(t, s, UpsertEntityInput{Name: "Amazon", Type: EntityTypeOrganization})
	id2 := upsertEntity(t, s, UpsertEntityInput{Name: "Amazon", Type: EntityTypeLocation})
	assert.NotEqual(t, id1, id2)
}

func TestGetEntity_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetEntity(context.Background(), "missing")
	require.Error(t, err)
}

func TestLinkEntity_UpsertsOnConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	contentID, _, err := s.UpsertContent(ctx, UpsertContentInput{Kind: ContentKindText, Hash: HashContent([]byte("x")), Size: 1})
	require.NoError(t, err)
	entityID := upsertEntity(t, s, UpsertEntityInput{Name: "Go", Type: EntityTypeTechnology})

	link := func(relevance float64) {
		require.NoError(t, s.Tx(ctx, func(tx *sql.Tx) error {
			return LinkEntity(ctx, tx, LinkEntityInput{
				ContentID: contentID, ContentKind: ContentKindText, EntityID: entityID, Relevance: relevance,
			})
		}))
	}

	link(0.5)
	link(0.9)

	links, err := s.GetLinksForContent(ctx, contentID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, 0.9, links[0].Relevance)
}

func TestDeleteContent_CascadesLinksButNotEntity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	contentID, _, err := s.UpsertContent(ctx, UpsertContentInput{Kind: ContentKindText, Hash: HashContent([]byte("x")), Size: 1})
	require.NoError(t, err)
	entityID := upsertEntity(t, s, UpsertEntityInput{Name: "Go", Type: EntityTypeTechnology})

	require.NoError(t, s.Tx(ctx, func(tx *sql.Tx) error {
		return LinkEntity(ctx, tx, LinkEntityInput{ContentID: contentID, ContentKind: ContentKindText, EntityID: entityID, Relevance: 1})
	}))

	require.NoError(t, s.DeleteContent(ctx, contentID))

	links, err := s.GetLinksForContent(ctx, contentID)
	require.NoError(t, err)
	assert.Empty(t, links)

	e, err := s.GetEntity(ctx, entityID)
	require.NoError(t, err)
	assert.Equal(t, "Go", e.Name)
}

func TestGetContentForEntity_OrdersByRelevance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lowID, _, err := s.UpsertContent(ctx, UpsertContentInput{Kind: ContentKindText, Hash: HashContent([]byte("low")), Size: 1})
	require.NoError(t, err)
	highID, _, err := s.UpsertContent(ctx, UpsertContentInput{Kind: ContentKindText, Hash: HashContent([]byte("high")), Size: 1})
	require.NoError(t, err)
	entityID := upsertEntity(t, s, UpsertEntityInput{Name: "Rust", Type: EntityTypeTechnology})

	require.NoError(t, s.Tx(ctx, func(tx *sql.Tx) error {
		if err := LinkEntity(ctx, tx, LinkEntityInput{ContentID: lowID, ContentKind: ContentKindText, EntityID: entityID, Relevance: 0.2}); err != nil {
			return err
		}
		return LinkEntity(ctx, tx, LinkEntityInput{ContentID: highID, ContentKind: ContentKindText, EntityID: entityID, Relevance: 0.8})
	}))

	recs, err := s.GetContentForEntity(ctx, entityID, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, highID, recs[0].ID)
	assert.Equal(t, lowID, recs[1].ID)
}

func TestListEntitiesByType(t *testing.T) {
	s := newTestStore(t)
	upsertEntity(t, s, UpsertEntityInput{Name: "Paris", Type: EntityTypeLocation})
	upsertEntity(t, s, UpsertEntityInput{Name: "Berlin", Type: EntityTypeLocation})
	upsertEntity(t, s, UpsertEntityInput{Name: "Acme", Type: EntityTypeOrganization})

	got, err := s.ListEntitiesByType(context.Background(), EntityTypeLocation, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
