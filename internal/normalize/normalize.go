// Package normalize implements EntityNormalizer (spec §4.5): collapsing
// a batch of raw, per-chunk extracted entities into canonical entities
// ready for the Store's UNIQUE(name, type) upsert.
package normalize

import (
	"sort"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/DrunkOnJava/ingestor-service/internal/extract"
	"github.com/DrunkOnJava/ingestor-service/internal/store"
)

// DefaultCacheSize bounds the (name,type)->canonical-id resolution cache
// sitting in front of the Store upsert, grounded on the teacher's
// embed.CachedEmbedder sizing convention.
const DefaultCacheSize = 1000

// Canonical is a normalized entity ready for Store.UpsertEntity, paired
// with the mentions that survived normalization.
type Canonical struct {
	Name      string
	Type      store.EntityType
	Mentions  []extract.Mention
	Metadata  map[string]string
	Relevance float64
}

// Options configures a single Normalize call (spec §4.5).
type Options struct {
	ConfidenceThreshold float64
	MaxEntities         int
}

func (o Options) WithDefaults() Options {
	if o.ConfidenceThreshold == 0 {
		o.ConfidenceThreshold = 0.5
	}
	if o.MaxEntities == 0 {
		o.MaxEntities = 50
	}
	return o
}

// Normalizer runs the five-step normalization pipeline and caches
// recently-resolved (name,type) -> canonical id pairs for the caller to
// consult before paying a Store upsert round trip.
type Normalizer struct {
	idCache *lru.Cache[string, string]
}

func NewNormalizer(cacheSize int) *Normalizer {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, string](cacheSize)
	return &Normalizer{idCache: cache}
}

// CachedID returns a previously-resolved canonical entity id for
// (name, type), if the cache holds one.
func (n *Normalizer) CachedID(name string, typ store.EntityType) (string, bool) {
	return n.idCache.Get(cacheKey(name, typ))
}

// RememberID records a resolved canonical entity id for (name, type).
func (n *Normalizer) RememberID(name string, typ store.EntityType, id string) {
	n.idCache.Add(cacheKey(name, typ), id)
}

func cacheKey(name string, typ store.EntityType) string {
	return string(typ) + "\x00" + name
}

// Normalize runs spec §4.5's five steps over the aggregate of raw
// entities collected across all chunks of one ContentRecord.
func (n *Normalizer) Normalize(raw []extract.RawEntity, opts Options) []Canonical {
	opts = opts.WithDefaults()

	type accumulator struct {
		canonicalName string
		typ           store.EntityType
		mentions      map[mentionKey]extract.Mention
		metadata      map[string]string
		firstSeen     int
	}

	order := 0
	merged := make(map[string]*accumulator)
	var mergedOrder []string

	for _, e := range raw {
		// Step 1: drop entities outside the eight canonical types.
		if !isCanonicalType(e.Type) {
			continue
		}
		// Step 2: drop entities whose max mention relevance is below threshold.
		if maxRelevance(e.Mentions) < opts.ConfidenceThreshold {
			continue
		}

		// Step 3: canonical name.
		canonicalName := canonicalizeName(e.Name, e.Type)
		if canonicalName == "" {
			continue
		}

		key := cacheKey(canonicalName, e.Type)
		acc, ok := merged[key]
		if !ok {
			acc = &accumulator{
				canonicalName: canonicalName,
				typ:           e.Type,
				mentions:      make(map[mentionKey]extract.Mention),
				metadata:      make(map[string]string),
				firstSeen:     order,
			}
			merged[key] = acc
			mergedOrder = append(mergedOrder, key)
			order++
		}

		// Step 4: union mention lists, max relevance per mention tuple,
		// union metadata maps.
		for _, m := range e.Mentions {
			mk := mentionKey{context: m.Context, position: m.Position}
			if existing, exists := acc.mentions[mk]; !exists || m.Relevance > existing.Relevance {
				acc.mentions[mk] = m
			}
		}
		for k, v := range e.Metadata {
			if _, exists := acc.metadata[k]; !exists {
				acc.metadata[k] = v
			}
		}
	}

	canonicals := make([]Canonical, 0, len(mergedOrder))
	for _, key := range mergedOrder {
		acc := merged[key]
		mentions := make([]extract.Mention, 0, len(acc.mentions))
		maxRel := 0.0
		for _, m := range acc.mentions {
			mentions = append(mentions, m)
			if m.Relevance > maxRel {
				maxRel = m.Relevance
			}
		}
		sort.Slice(mentions, func(i, j int) bool { return mentions[i].Position < mentions[j].Position })

		canonicals = append(canonicals, Canonical{
			Name:      acc.canonicalName,
			Type:      acc.typ,
			Mentions:  mentions,
			Metadata:  acc.metadata,
			Relevance: maxRel,
		})
	}

	// Step 5: cap output at maxEntities, keeping highest relevance,
	// tie-break by first-seen order (stable sort preserves input order
	// for equal keys since canonicals is already in first-seen order).
	sort.SliceStable(canonicals, func(i, j int) bool {
		return canonicals[i].Relevance > canonicals[j].Relevance
	})
	if len(canonicals) > opts.MaxEntities {
		canonicals = canonicals[:opts.MaxEntities]
	}
	return canonicals
}

type mentionKey struct {
	context  string
	position int
}

func isCanonicalType(t store.EntityType) bool {
	for _, want := range extract.AllEntityTypes {
		if want == t {
			return true
		}
	}
	return false
}

func maxRelevance(mentions []extract.Mention) float64 {
	max := 0.0
	for _, m := range mentions {
		if m.Relevance > max {
			max = m.Relevance
		}
	}
	return max
}

// canonicalizeName applies spec §4.5 step 3: NFKC, whitespace collapse,
// punctuation strip, then type-specific casing.
func canonicalizeName(name string, typ store.EntityType) string {
	name = norm.NFKC.String(name)
	name = collapseWhitespace(name)
	name = strings.TrimFunc(name, func(r rune) bool {
		return unicode.IsPunct(r) && r != '-' && r != '\''
	})
	if name == "" {
		return ""
	}

	switch typ {
	case store.EntityTypeDate, store.EntityTypeProduct, store.EntityTypeTechnology:
		return name
	}

	if isAcronym(name) {
		return strings.ToUpper(name)
	}

	switch typ {
	case store.EntityTypePerson, store.EntityTypeOrganization, store.EntityTypeLocation, store.EntityTypeEvent:
		return titleCase(name)
	default:
		return name
	}
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// isAcronym reports names whose letters are all upper-case and number 1
// to 5 (spaces, digits and punctuation are not counted), per spec's "uppercase for acronyms
// (all-caps <= 5 chars preserved)".
func isAcronym(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		if !unicode.IsUpper(r) && unicode.IsLetter(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters > 0 && letters <= 5
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		if len(r) > 0 {
			r[0] = unicode.ToUpper(r[0])
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
