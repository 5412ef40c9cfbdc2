// Package store implements the embedded relational persistence layer: a
// single SQLite database holding content, chunk, entity, and full-text
// index rows, accessed through WAL mode for concurrent readers alongside
// a single logical writer (spec §4.1).
package store

import "time"

// ContentKind enumerates the recognized content kinds (spec §3).
type ContentKind string

const (
	ContentKindText        ContentKind = "text"
	ContentKindMarkdown    ContentKind = "markdown"
	ContentKindHTML        ContentKind = "html"
	ContentKindJSON        ContentKind = "json"
	ContentKindXML         ContentKind = "xml"
	ContentKindCode        ContentKind = "code"
	ContentKindPDF         ContentKind = "pdf"
	ContentKindImage       ContentKind = "image"
	ContentKindVideo       ContentKind = "video"
	ContentKindOctetStream ContentKind = "octet-stream"
)

// ContentStatus is the lifecycle state of a ContentRecord.
type ContentStatus string

const (
	ContentStatusQueued     ContentStatus = "queued"
	ContentStatusProcessing ContentStatus = "processing"
	ContentStatusCompleted  ContentStatus = "completed"
	ContentStatusFailed     ContentStatus = "failed"
)

// EntityType enumerates recognized entity canonical types (spec §3).
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeLocation     EntityType = "location"
	EntityTypeDate         EntityType = "date"
	EntityTypeProduct      EntityType = "product"
	EntityTypeTechnology   EntityType = "technology"
	EntityTypeEvent        EntityType = "event"
	EntityTypeOther        EntityType = "other"
)

// ContentRecord is the persisted unit of ingested content (spec §3).
// (hash, kind) uniquely identifies reprocessable content: a second
// ingestion with an identical hash updates metadata but does not
// duplicate body rows.
type ContentRecord struct {
	ID           string
	Kind         ContentKind
	Title        string
	Description  string
	Filename     string
	SourceURI    string
	Hash         string
	Size         int64
	Metadata     map[string]string
	Status       ContentStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ProcessedAt  *time.Time
	ErrorSummary string
}

// ChunkRecord is one dense, 0-indexed slice of a ContentRecord's body.
type ChunkRecord struct {
	ID        string
	ContentID string
	Index     int
	Text      string
	Metadata  map[string]string
	CreatedAt time.Time
}

// EntityCanonical is a globally shared, long-lived named entity.
// UNIQUE(name, type); upserted on first sighting and retained
// independently of any single ContentRecord's lifetime.
type EntityCanonical struct {
	ID          string
	Name        string
	Type        EntityType
	Description string
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ContentEntityLink ties a ContentRecord to an EntityCanonical it mentions.
// UNIQUE(contentId, contentKind, entityId); cascades on content delete,
// but never deletes the entity canonical it references.
type ContentEntityLink struct {
	ID          string
	ContentID   string
	ContentKind ContentKind
	EntityID    string
	Relevance   float64
	Context     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Stats summarizes the database for operational visibility (getStatistics).
type Stats struct {
	ContentCount       int64
	ChunkCount         int64
	EntityCount        int64
	LinkCount          int64
	DatabaseSizeBytes  int64
	SchemaVersion      string
	OldestContentAt    *time.Time
	NewestContentAt    *time.Time
}
