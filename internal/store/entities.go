package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	ingesterrors "github.com/DrunkOnJava/ingestor-service/internal/errors"
)

// UpsertEntityInput carries the fields needed to upsert one
// EntityCanonical within an existing transaction.
type UpsertEntityInput struct {
	Name        string
	Type        EntityType
	Description string
	Metadata    map[string]string
}

// UpsertEntity upserts an EntityCanonical by (name, type) inside tx,
// returning its id. First sighting inserts; subsequent sightings leave
// the row's identity untouched and merge description/metadata.
func UpsertEntity(ctx context.Context, tx *sql.Tx, in UpsertEntityInput) (string, error) {
	metaJSON, err := marshalMetadata(in.Metadata)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC().Format(time.RFC3339)

	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM entities WHERE name = ? AND entity_type = ?`, in.Name, string(in.Type),
	).Scan(&id)

	switch {
	case err == nil:
		_, uErr := tx.ExecContext(ctx,
			`UPDATE entities SET description = COALESCE(NULLIF(?, ''), description), metadata = ?, updated_at = ? WHERE id = ?`,
			in.Description, metaJSON, now, id,
		)
		return id, uErr

	case err == sql.ErrNoRows:
		id = uuid.NewString()
		_, iErr := tx.ExecContext(ctx,
			`INSERT INTO entities(id, name, entity_type, description, metadata, created_at, updated_at)
			 VALUES(?, ?, ?, ?, ?, ?, ?)`,
			id, in.Name, string(in.Type), in.Description, metaJSON, now, now,
		)
		if isUniqueViolation(iErr) {
			// Concurrent sighting won the race; look the row up instead of failing (spec §7).
			var existing string
			if lookupErr := tx.QueryRowContext(ctx,
				`SELECT id FROM entities WHERE name = ? AND entity_type = ?`, in.Name, string(in.Type),
			).Scan(&existing); lookupErr == nil {
				return existing, nil
			}
			return "", iErr
		}
		return id, iErr

	default:
		return "", err
	}
}

// LinkEntityInput carries the fields needed to link content to an entity.
type LinkEntityInput struct {
	ContentID   string
	ContentKind ContentKind
	EntityID    string
	Relevance   float64
	Context     string
}

// LinkEntity upserts a ContentEntityLink inside tx. A second ingestion of
// the same (contentId, contentKind, entityId) updates relevance/context
// rather than duplicating the link (spec §3 invariant).
func LinkEntity(ctx context.Context, tx *sql.Tx, in LinkEntityInput) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx,
		`INSERT INTO content_entities(id, content_id, content_type, entity_id, relevance, context, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(content_id, content_type, entity_id) DO UPDATE SET
		   relevance = excluded.relevance, context = excluded.context, updated_at = excluded.updated_at`,
		uuid.NewString(), in.ContentID, string(in.ContentKind), in.EntityID, in.Relevance, in.Context, now, now,
	)
	return err
}

// GetEntity fetches one EntityCanonical by id.
func (s *Store) GetEntity(ctx context.Context, id string) (*EntityCanonical, error) {
	rows, err := s.Query(ctx,
		`SELECT id, name, entity_type, description, metadata, created_at, updated_at FROM entities WHERE id = ?`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ingesterrors.NotFoundError(fmt.Sprintf("entity %s not found", id), nil)
	}
	return scanEntity(rows)
}

// ListEntitiesByType returns EntityCanonicals of the given type, newest first.
func (s *Store) ListEntitiesByType(ctx context.Context, entityType EntityType, limit int) ([]EntityCanonical, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Query(ctx,
		`SELECT id, name, entity_type, description, metadata, created_at, updated_at
		 FROM entities WHERE entity_type = ? ORDER BY created_at DESC LIMIT ?`,
		string(entityType), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EntityCanonical
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// GetLinksForContent returns every ContentEntityLink owned by a ContentRecord.
func (s *Store) GetLinksForContent(ctx context.Context, contentID string) ([]ContentEntityLink, error) {
	rows, err := s.Query(ctx,
		`SELECT id, content_id, content_type, entity_id, relevance, context, created_at, updated_at
		 FROM content_entities WHERE content_id = ? ORDER BY relevance DESC`, contentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ContentEntityLink
	for rows.Next() {
		var l ContentEntityLink
		var kind string
		var createdAt, updatedAt string
		if err := rows.Scan(&l.ID, &l.ContentID, &kind, &l.EntityID, &l.Relevance, &l.Context, &createdAt, &updatedAt); err != nil {
			return nil, wrapSQLError(err)
		}
		l.ContentKind = ContentKind(kind)
		l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		l.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetContentForEntity returns the ContentRecords linked to an entity,
// most relevant first.
func (s *Store) GetContentForEntity(ctx context.Context, entityID string, limit int) ([]ContentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Query(ctx, `
		SELECT c.id, c.content_type, c.title, c.description, c.source, c.file_path, c.hash, c.size, c.status, c.metadata, c.created_at, c.updated_at, c.processed_at, c.error_summary
		FROM content c
		JOIN content_entities ce ON ce.content_id = c.id
		WHERE ce.entity_id = ?
		ORDER BY ce.relevance DESC
		LIMIT ?`, entityID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ContentRecord
	for rows.Next() {
		r, err := scanContentRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanEntity(rows *sql.Rows) (*EntityCanonical, error) {
	var e EntityCanonical
	var metaJSON, descr sql.NullString
	var createdAt, updatedAt, entType string

	if err := rows.Scan(&e.ID, &e.Name, &entType, &descr, &metaJSON, &createdAt, &updatedAt); err != nil {
		return nil, wrapSQLError(err)
	}

	e.Type = EntityType(entType)
	e.Description = descr.String
	e.Metadata, _ = unmarshalMetadata(metaJSON.String)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &e, nil
}
