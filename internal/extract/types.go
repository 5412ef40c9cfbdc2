// Package extract implements LLMClient and RuleExtractor (spec §4.4):
// typed entity extraction from a chunk of text, with a fallback cascade
// from a remote LLM down to deterministic per-kind rule extraction.
package extract

import "github.com/DrunkOnJava/ingestor-service/internal/store"

// Mention is a single occurrence of an entity within extracted text.
type Mention struct {
	Context   string  `json:"context"`
	Position  int     `json:"position"`
	Relevance float64 `json:"relevance"`
}

// RawEntity is an entity as produced by an extractor, before
// EntityNormalizer canonicalizes it.
type RawEntity struct {
	Name     string            `json:"name"`
	Type     store.EntityType  `json:"type"`
	Mentions []Mention         `json:"mentions"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Result is an extractor's output for one chunk (spec §4.4).
type Result struct {
	Entities      []RawEntity `json:"entities"`
	Confidence    float64     `json:"confidence"`
	ContentLength int         `json:"contentLength"`
	Success       bool        `json:"success"`
	Error         string      `json:"error,omitempty"`
}

// Options configures a single extract call (spec §4.4).
type Options struct {
	UseLLM              bool
	EntityTypes         []store.EntityType
	ConfidenceThreshold float64
	MaxEntities         int
	ExtractMentions     bool
}

// WithDefaults fills zero-valued fields with spec §4.4's stated defaults.
func (o Options) WithDefaults() Options {
	if o.ConfidenceThreshold == 0 {
		o.ConfidenceThreshold = 0.5
	}
	if o.MaxEntities == 0 {
		o.MaxEntities = 50
	}
	if len(o.EntityTypes) == 0 {
		o.EntityTypes = AllEntityTypes
	}
	return o
}

// AllEntityTypes is the closed eight-type canonical set (spec §3/§4.5).
var AllEntityTypes = []store.EntityType{
	store.EntityTypePerson,
	store.EntityTypeOrganization,
	store.EntityTypeLocation,
	store.EntityTypeDate,
	store.EntityTypeProduct,
	store.EntityTypeTechnology,
	store.EntityTypeEvent,
	store.EntityTypeOther,
}

func allowsType(opts Options, t store.EntityType) bool {
	for _, want := range opts.EntityTypes {
		if want == t {
			return true
		}
	}
	return false
}
