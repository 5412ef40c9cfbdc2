// Package process implements ContentProcessor (spec §4.6): the
// single-item pipeline running FileProbe, Chunker, the Extractor
// cascade, and EntityNormalizer against the Store inside two
// transactions.
package process

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/DrunkOnJava/ingestor-service/internal/chunk"
	ingesterrors "github.com/DrunkOnJava/ingestor-service/internal/errors"
	"github.com/DrunkOnJava/ingestor-service/internal/extract"
	"github.com/DrunkOnJava/ingestor-service/internal/normalize"
	"github.com/DrunkOnJava/ingestor-service/internal/probe"
	"github.com/DrunkOnJava/ingestor-service/internal/store"
)

// Input is one item handed to ContentProcessor.Process: either a
// filesystem path (Path != "") or an inline body (Body != nil).
type Input struct {
	Path     string
	Body     []byte
	Filename string
	Title    string
	Descr    string
	Metadata map[string]string
}

// Options configures one Process call (spec §4.6's processingOptions).
type Options struct {
	Kind            probe.Kind
	ChunkOptions    chunk.Options
	ExtractOptions  extract.Options
	NormalizeOpts   normalize.Options
	ContinueOnError bool
}

// Result is ContentProcessingResult (spec §4.6).
type Result struct {
	ContentID string
	Kind      probe.Kind
	Chunks    int
	Success   bool
	Error     string
	Metadata  map[string]string
	EntityIDs []string
}

// Processor wires the per-chunk Extractor and EntityNormalizer in front
// of a Store.
type Processor struct {
	store      *store.Store
	extractor  *extract.Extractor
	normalizer *normalize.Normalizer
}

func NewProcessor(s *store.Store, extractor *extract.Extractor, normalizer *normalize.Normalizer) *Processor {
	return &Processor{store: s, extractor: extractor, normalizer: normalizer}
}

// Process runs spec §4.6's seven-step algorithm. It never returns a raw
// error for recoverable, per-item failures — those come back as
// Result{Success: false, Error: ...} (spec §7) — but does return an
// error for unrecoverable conditions (Store unreachable).
func (p *Processor) Process(ctx context.Context, in Input, opts Options) (Result, error) {
	body, kind, readErr := materialize(in, opts.Kind)
	if readErr != nil {
		return Result{Success: false, Error: readErr.Error()}, nil
	}

	hash := store.HashContent(body)
	storeKind := mapKind(kind)

	contentID, chunks, txErr := p.persistContentAndChunks(ctx, in, storeKind, hash, body, kind, opts)
	if txErr != nil {
		return Result{Success: false, Error: txErr.Error()}, txErr
	}

	rawEntities, extractErr := p.extractAll(ctx, chunks, kind, opts)
	if extractErr != nil && !opts.ContinueOnError {
		_ = p.store.SetContentStatusWithError(ctx, contentID, store.ContentStatusFailed, extractErr.Error())
		return Result{ContentID: contentID, Kind: kind, Chunks: len(chunks), Success: false, Error: extractErr.Error()}, nil
	}

	canonicals := p.normalizer.Normalize(rawEntities, opts.NormalizeOpts)

	entityIDs, linkErr := p.persistEntitiesAndComplete(ctx, contentID, storeKind, canonicals)
	if linkErr != nil {
		_ = p.store.SetContentStatusWithError(ctx, contentID, store.ContentStatusFailed, linkErr.Error())
		return Result{ContentID: contentID, Kind: kind, Chunks: len(chunks), Success: false, Error: linkErr.Error()}, nil
	}

	return Result{
		ContentID: contentID,
		Kind:      kind,
		Chunks:    len(chunks),
		Success:   true,
		Metadata:  in.Metadata,
		EntityIDs: entityIDs,
	}, nil
}

// materialize implements spec §4.6 steps 1-2: resolve kind via FileProbe
// when absent/octet-stream, then read the body appropriately for
// textual vs. non-textual kinds.
func materialize(in Input, kind probe.Kind) ([]byte, probe.Kind, error) {
	if in.Path != "" {
		if kind == "" || kind == probe.KindOctetStream {
			peek, _ := readHead(in.Path, 4096)
			kind = probe.Detect(in.Path, peek)
		}
		if isTextualKind(kind) {
			body, err := os.ReadFile(in.Path)
			if err != nil {
				return nil, kind, ingesterrors.IOError(fmt.Sprintf("reading %s", in.Path), err)
			}
			return body, kind, nil
		}
		// Non-textual: pass path-by-reference to the extractor.
		return []byte(in.Path), kind, nil
	}

	if kind == "" || kind == probe.KindOctetStream {
		kind = probe.Detect(in.Filename, in.Body)
	}
	return in.Body, kind, nil
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	read, _ := f.Read(buf)
	return buf[:read], nil
}

func isTextualKind(kind probe.Kind) bool {
	switch kind {
	case probe.KindText, probe.KindMarkdown, probe.KindHTML, probe.KindJSON, probe.KindXML, probe.KindCSV,
		probe.KindCodePython, probe.KindCodeJS, probe.KindShell, probe.KindCodeGeneric:
		return true
	}
	return false
}

// persistContentAndChunks runs spec §4.6 step 4 inside one transaction:
// upsert ContentRecord, chunk if textual and oversized, persist chunks.
func (p *Processor) persistContentAndChunks(ctx context.Context, in Input, kind store.ContentKind, hash string, body []byte, probeKind probe.Kind, opts Options) (string, []store.ChunkRecord, error) {
	var contentID string
	var chunks []store.ChunkRecord

	err := p.store.Tx(ctx, func(tx *sql.Tx) error {
		id, _, err := p.upsertContentTx(ctx, tx, in, kind, hash, int64(len(body)))
		if err != nil {
			return err
		}
		contentID = id

		var texts []string
		if isTextualKind(probeKind) && len(body) > opts.ChunkOptions.WithDefaults().MaxSize {
			texts = chunk.Chunk(string(body), opts.ChunkOptions)
		} else {
			texts = []string{string(body)}
		}

		chunks = make([]store.ChunkRecord, len(texts))
		for i, text := range texts {
			chunks[i] = store.ChunkRecord{Index: i, Text: text}
		}
		if err := store.InsertChunks(ctx, tx, contentID, chunks); err != nil {
			return err
		}
		return store.SetContentStatusTx(ctx, tx, contentID, store.ContentStatusProcessing, "")
	})
	if err != nil {
		return "", nil, err
	}
	return contentID, chunks, nil
}

// upsertContentTx mirrors Store.UpsertContent but runs inside the
// caller's transaction, since InsertChunks must share it (spec §4.6
// step 4 is one transaction start to finish).
func (p *Processor) upsertContentTx(ctx context.Context, tx *sql.Tx, in Input, kind store.ContentKind, hash string, size int64) (string, bool, error) {
	return store.UpsertContentTx(ctx, tx, store.UpsertContentInput{
		Kind:      kind,
		Filename:  in.Filename,
		SourceURI: in.Path,
		Title:     in.Title,
		Descr:     in.Descr,
		Hash:      hash,
		Size:      size,
		Metadata:  in.Metadata,
	})
}

// maxExtractParallelism bounds how many chunks of one item extract
// concurrently, so a single large item can't starve the rest of the
// worker's goroutine budget.
const maxExtractParallelism = 4

// extractAll runs spec §4.6 step 5: call the Extractor stack for every
// chunk concurrently, outside the write transaction, then aggregate raw
// entities in chunk order. A chunk's extraction failure is tolerated iff
// ContinueOnError; otherwise the aggregate of all chunk failures is fatal.
func (p *Processor) extractAll(ctx context.Context, chunks []store.ChunkRecord, kind probe.Kind, opts Options) ([]extract.RawEntity, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	results := make([]extract.Result, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, min(maxExtractParallelism, len(chunks)))

	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}
			results[i] = p.extractor.Extract(gctx, c.Text, kind, opts.ExtractOptions)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, ingesterrors.InternalError("extraction canceled", err)
	}

	var all []extract.RawEntity
	var failures []string
	for i, result := range results {
		if !result.Success {
			failures = append(failures, fmt.Sprintf("chunk %d: %s", chunks[i].Index, result.Error))
			continue
		}
		all = append(all, result.Entities...)
	}

	if len(failures) > 0 && !opts.ContinueOnError {
		return all, ingesterrors.InternalError(strings.Join(failures, "; "), nil)
	}
	return all, nil
}

// persistEntitiesAndComplete runs spec §4.6 step 7 in full: upsert
// EntityCanonicals, insert ContentEntityLinks, and transition the
// ContentRecord to status=completed, all inside one transaction — a
// failure partway through never leaves a ContentRecord stuck in
// processing.
func (p *Processor) persistEntitiesAndComplete(ctx context.Context, contentID string, kind store.ContentKind, canonicals []normalize.Canonical) ([]string, error) {
	var ids []string
	err := p.store.Tx(ctx, func(tx *sql.Tx) error {
		for _, c := range canonicals {
			id, err := store.UpsertEntity(ctx, tx, store.UpsertEntityInput{
				Name:     c.Name,
				Type:     c.Type,
				Metadata: c.Metadata,
			})
			if err != nil {
				return err
			}

			context := ""
			if len(c.Mentions) > 0 {
				context = c.Mentions[0].Context
			}
			if err := store.LinkEntity(ctx, tx, store.LinkEntityInput{
				ContentID:   contentID,
				ContentKind: kind,
				EntityID:    id,
				Relevance:   c.Relevance,
				Context:     context,
			}); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return store.SetContentStatusTx(ctx, tx, contentID, store.ContentStatusCompleted, "")
	})
	return ids, err
}

// mapKind translates a probe.Kind into the store's closed ContentKind
// enum (spec §3's kind space is narrower than probe's MIME-shaped one).
func mapKind(kind probe.Kind) store.ContentKind {
	switch kind {
	case probe.KindText, probe.KindCSV:
		return store.ContentKindText
	case probe.KindMarkdown:
		return store.ContentKindMarkdown
	case probe.KindHTML:
		return store.ContentKindHTML
	case probe.KindJSON:
		return store.ContentKindJSON
	case probe.KindXML:
		return store.ContentKindXML
	case probe.KindCodePython, probe.KindCodeJS, probe.KindShell, probe.KindCodeGeneric:
		return store.ContentKindCode
	case probe.KindPDF:
		return store.ContentKindPDF
	case probe.KindImage:
		return store.ContentKindImage
	case probe.KindVideo:
		return store.ContentKindVideo
	default:
		return store.ContentKindOctetStream
	}
}
