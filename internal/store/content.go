package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	ingesterrors "github.com/DrunkOnJava/ingestor-service/internal/errors"
)

// HashContent computes the content-addressed SHA-256 hash used for
// (hash, kind) deduplication (spec §3).
func HashContent(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// UpsertContentInput carries the fields needed to create or refresh a
// ContentRecord within a single transaction.
type UpsertContentInput struct {
	Kind      ContentKind
	Filename  string
	SourceURI string
	Title     string
	Descr     string
	Hash      string
	Size      int64
	Metadata  map[string]string
}

// UpsertContent inserts a new ContentRecord, or — when (hash, kind)
// already exists — updates its metadata without duplicating body rows
// (spec §3 invariant). Returns the record's id and whether it was newly
// created.
func (s *Store) UpsertContent(ctx context.Context, in UpsertContentInput) (id string, created bool, err error) {
	txErr := s.Tx(ctx, func(tx *sql.Tx) error {
		var txErr error
		id, created, txErr = UpsertContentTx(ctx, tx, in)
		return txErr
	})
	if txErr != nil {
		return "", false, txErr
	}
	return id, created, nil
}

// UpsertContentTx is UpsertContent run inside a caller-owned transaction,
// so a chunk-persisting caller (ContentProcessor, spec §4.6 step 4) can
// share one transaction across the content upsert and its chunk writes.
func UpsertContentTx(ctx context.Context, tx *sql.Tx, in UpsertContentInput) (id string, created bool, err error) {
	metaJSON, err := marshalMetadata(in.Metadata)
	if err != nil {
		return "", false, ingesterrors.ValidationError("invalid metadata", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	var existingID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM content WHERE hash = ? AND content_type = ?`,
		in.Hash, string(in.Kind),
	).Scan(&existingID)

	switch {
	case err == nil:
		id = existingID
		created = false
		_, err = tx.ExecContext(ctx,
			`UPDATE content SET metadata = ?, updated_at = ?, title = COALESCE(NULLIF(?, ''), title),
			 description = COALESCE(NULLIF(?, ''), description) WHERE id = ?`,
			metaJSON, now, in.Title, in.Descr, id,
		)
		return id, created, err

	case err == sql.ErrNoRows:
		id = uuid.NewString()
		created = true
		_, err = tx.ExecContext(ctx,
			`INSERT INTO content(id, content_type, title, description, source, file_path, hash, size, status, metadata, created_at, updated_at)
			 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, string(in.Kind), in.Title, in.Descr, in.SourceURI, in.Filename, in.Hash, in.Size,
			string(ContentStatusQueued), metaJSON, now, now,
		)
		if isUniqueViolation(err) {
			var existing string
			if lookupErr := tx.QueryRowContext(ctx,
				`SELECT id FROM content WHERE hash = ? AND content_type = ?`, in.Hash, string(in.Kind),
			).Scan(&existing); lookupErr == nil {
				return existing, false, nil
			}
		}
		return id, created, err

	default:
		return "", false, err
	}
}

// SetContentStatus transitions a ContentRecord's status, stamping
// processedAt when entering a terminal state.
func (s *Store) SetContentStatus(ctx context.Context, id string, status ContentStatus) error {
	return s.SetContentStatusWithError(ctx, id, status, "")
}

// SetContentStatusWithError is SetContentStatus plus an errorSummary
// persisted alongside a failed status (spec §4.6 step 7: "set
// status=failed, persist errorSummary, leave prior chunk rows intact").
func (s *Store) SetContentStatusWithError(ctx context.Context, id string, status ContentStatus, errorSummary string) error {
	return s.Tx(ctx, func(tx *sql.Tx) error {
		return SetContentStatusTx(ctx, tx, id, status, errorSummary)
	})
}

// SetContentStatusTx is SetContentStatusWithError run inside a
// caller-owned transaction, so ContentProcessor can set status=processing
// in the same transaction as the content upsert and chunk writes (spec
// §4.6 step 4a).
func SetContentStatusTx(ctx context.Context, tx *sql.Tx, id string, status ContentStatus, errorSummary string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	var processedAt any
	if status == ContentStatusCompleted || status == ContentStatusFailed {
		processedAt = now
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE content SET status = ?, updated_at = ?, processed_at = COALESCE(?, processed_at),
		 error_summary = CASE WHEN ? != '' THEN ? ELSE error_summary END WHERE id = ?`,
		string(status), now, processedAt, errorSummary, errorSummary, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ingesterrors.NotFoundError(fmt.Sprintf("content %s not found", id), nil)
	}
	return nil
}

// GetContent fetches one ContentRecord by id.
func (s *Store) GetContent(ctx context.Context, id string) (*ContentRecord, error) {
	rows, err := s.Query(ctx,
		`SELECT id, content_type, title, description, source, file_path, hash, size, status, metadata, created_at, updated_at, processed_at, error_summary
		 FROM content WHERE id = ?`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ingesterrors.NotFoundError(fmt.Sprintf("content %s not found", id), nil)
	}
	return scanContentRecord(rows)
}

// InsertChunks persists the ordered ChunkRecords of a ContentRecord,
// replacing any prior chunks for that content. Must run inside the same
// transaction as the owning content write (spec §4.1).
func InsertChunks(ctx context.Context, tx *sql.Tx, contentID string, chunks []ChunkRecord) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM content_chunks WHERE content_id = ?`, contentID); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO content_chunks(id, content_id, chunk_index, chunk_text, chunk_metadata, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		metaJSON, err := marshalMetadata(c.Metadata)
		if err != nil {
			return err
		}
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, id, contentID, c.Index, c.Text, metaJSON, now); err != nil {
			return err
		}
	}
	return nil
}

// GetChunksForContent returns a ContentRecord's chunks ordered by index.
func (s *Store) GetChunksForContent(ctx context.Context, contentID string) ([]ChunkRecord, error) {
	rows, err := s.Query(ctx,
		`SELECT id, content_id, chunk_index, chunk_text, chunk_metadata, created_at
		 FROM content_chunks WHERE content_id = ? ORDER BY chunk_index ASC`, contentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChunkRecord
	for rows.Next() {
		var c ChunkRecord
		var metaJSON sql.NullString
		var createdAt string
		if err := rows.Scan(&c.ID, &c.ContentID, &c.Index, &c.Text, &metaJSON, &createdAt); err != nil {
			return nil, wrapSQLError(err)
		}
		c.Metadata, _ = unmarshalMetadata(metaJSON.String)
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteContent removes a ContentRecord along with its chunks and entity
// links (cascade); EntityCanonicals it referenced survive (spec §3).
func (s *Store) DeleteContent(ctx context.Context, id string) error {
	return s.Tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM content WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ingesterrors.NotFoundError(fmt.Sprintf("content %s not found", id), nil)
		}
		return nil
	})
}

func scanContentRecord(rows *sql.Rows) (*ContentRecord, error) {
	var r ContentRecord
	var metaJSON, processedAt, title, descr, source, filePath, errorSummary sql.NullString
	var createdAt, updatedAt string
	var kind, status string

	if err := rows.Scan(&r.ID, &kind, &title, &descr, &source, &filePath, &r.Hash, &r.Size, &status, &metaJSON, &createdAt, &updatedAt, &processedAt, &errorSummary); err != nil {
		return nil, wrapSQLError(err)
	}

	r.Title = title.String
	r.Description = descr.String
	r.SourceURI = source.String
	r.Filename = filePath.String
	r.Kind = ContentKind(kind)
	r.Status = ContentStatus(status)
	r.ErrorSummary = errorSummary.String
	r.Metadata, _ = unmarshalMetadata(metaJSON.String)
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if processedAt.Valid {
		if t, err := time.Parse(time.RFC3339, processedAt.String); err == nil {
			r.ProcessedAt = &t
		}
	}
	return &r, nil
}

func marshalMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalMetadata(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
