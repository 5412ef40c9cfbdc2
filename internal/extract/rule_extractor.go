package extract

import (
	"encoding/json"
	"encoding/xml"
	"regexp"
	"strings"

	"github.com/DrunkOnJava/ingestor-service/internal/probe"
	"github.com/DrunkOnJava/ingestor-service/internal/store"
)

// RuleExtractor is the deterministic fallback extractor dispatched by
// kind (spec §4.4 step 3): used when the LLM is disabled or exhausted.
type RuleExtractor struct{}

func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

var (
	// reCapNGram matches runs of 1-4 capitalized words: a coarse
	// person/organization name detector, not a real NER model.
	reCapNGram = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3})\b`)

	// reLocationHint gazetteer-style: common geographic suffixes/words.
	reLocationHint = regexp.MustCompile(`\b([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)*\s+(?:City|County|Street|Avenue|Province|Island|River|Mountain))\b`)

	// reISODate and reEnglishDate cover spec's "ISO/English dates".
	reISODate     = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	reEnglishDate = regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}\b`)

	// reQuotedProduct matches quoted tokens: spec's "quoted product-like tokens".
	reQuotedProduct = regexp.MustCompile(`"([^"]{2,40})"`)

	// reCodeClass/Func/Import are the AST-lite regexes for class,
	// function, and import capture; there is no separate top-level
	// identifier regex.
	reCodeClass  = regexp.MustCompile(`(?m)^\s*(?:class|struct|interface|type)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	reCodeFunc   = regexp.MustCompile(`(?m)^\s*(?:func|def|function)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	reCodeImport = regexp.MustCompile(`(?m)^\s*(?:import|from|require|use)\s+"?([A-Za-z0-9_./-]+)"?`)
)

// Extract dispatches to a kind-specific deterministic extractor (spec
// §4.4 step 3). image/* and video/* have no rule extractor and return an
// empty, successful result.
func (r *RuleExtractor) Extract(text string, kind probe.Kind, opts Options) Result {
	opts = opts.WithDefaults()

	switch {
	case kind == probe.KindImage || kind == probe.KindVideo || kind == probe.KindAudio:
		return Result{Success: true, ContentLength: len(text)}
	case kind == probe.KindJSON:
		return r.extractJSON(text, opts)
	case kind == probe.KindXML:
		return r.extractXML(text, opts)
	case isCodeKind(kind):
		return r.extractCode(text, opts)
	default:
		return r.extractProse(text, opts)
	}
}

func isCodeKind(kind probe.Kind) bool {
	switch kind {
	case probe.KindCodePython, probe.KindCodeJS, probe.KindCodeGeneric, probe.KindShell:
		return true
	}
	return false
}

// extractProse handles text/plain and markdown: capitalized name
// n-grams, location hints, dates, quoted products.
func (r *RuleExtractor) extractProse(text string, opts Options) Result {
	var entities []RawEntity

	if allowsType(opts, store.EntityTypePerson) || allowsType(opts, store.EntityTypeOrganization) {
		for _, m := range findAllWithPosition(reCapNGram, text) {
			entities = append(entities, newRawEntity(m.text, guessPersonOrOrg(m.text), m.pos, text, opts))
		}
	}
	if allowsType(opts, store.EntityTypeLocation) {
		for _, m := range findAllWithPosition(reLocationHint, text) {
			entities = append(entities, newRawEntity(m.text, store.EntityTypeLocation, m.pos, text, opts))
		}
	}
	if allowsType(opts, store.EntityTypeDate) {
		for _, re := range []*regexp.Regexp{reISODate, reEnglishDate} {
			for _, m := range findAllWithPosition(re, text) {
				entities = append(entities, newRawEntity(m.text, store.EntityTypeDate, m.pos, text, opts))
			}
		}
	}
	if allowsType(opts, store.EntityTypeProduct) {
		for _, m := range findAllWithPosition(reQuotedProduct, text) {
			name := m.text
			if sub := reQuotedProduct.FindStringSubmatch(m.text); len(sub) == 2 {
				name = sub[1]
			}
			entities = append(entities, newRawEntity(name, store.EntityTypeProduct, m.pos, text, opts))
		}
	}

	return Result{Entities: entities, Confidence: 0.4, ContentLength: len(text), Success: true}
}

// guessPersonOrOrg applies a coarse heuristic: multi-word capitalized
// phrases containing a common organization suffix are Organization,
// otherwise Person.
func guessPersonOrOrg(name string) store.EntityType {
	words := strings.Fields(strings.ToLower(name))
	if len(words) < 2 {
		return store.EntityTypePerson
	}
	last := words[len(words)-1]
	for _, suffix := range []string{"inc", "corp", "corporation", "llc", "ltd", "plc", "co", "company", "foundation", "institute", "university"} {
		if last == suffix {
			return store.EntityTypeOrganization
		}
	}
	return store.EntityTypePerson
}

// extractCode captures class/function/import names, typed as Technology
// per spec's code domain. The language (kind) is not recorded on the
// entities.
func (r *RuleExtractor) extractCode(text string, opts Options) Result {
	var entities []RawEntity
	if !allowsType(opts, store.EntityTypeTechnology) {
		return Result{Success: true, ContentLength: len(text)}
	}

	for _, re := range []*regexp.Regexp{reCodeClass, reCodeFunc, reCodeImport} {
		for _, sm := range re.FindAllStringSubmatchIndex(text, -1) {
			if len(sm) < 4 {
				continue
			}
			name := text[sm[2]:sm[3]]
			entities = append(entities, newRawEntity(name, store.EntityTypeTechnology, sm[2], text, opts))
		}
	}

	return Result{Entities: entities, Confidence: 0.5, ContentLength: len(text), Success: true}
}

// extractJSON walks keys/values, emitting string-valued leaves as
// entities typed Other by default (spec: "typed by heuristic").
func (r *RuleExtractor) extractJSON(text string, opts Options) Result {
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return Result{ContentLength: len(text), Success: false, Error: err.Error()}
	}
	var entities []RawEntity
	walkJSON("", doc, &entities, opts)
	return Result{Entities: entities, Confidence: 0.3, ContentLength: len(text), Success: true}
}

func walkJSON(key string, v any, out *[]RawEntity, opts Options) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			walkJSON(k, child, out, opts)
		}
	case []any:
		for _, child := range val {
			walkJSON(key, child, out, opts)
		}
	case string:
		if val == "" {
			return
		}
		t := jsonKeyHeuristic(key)
		if !allowsType(opts, t) {
			return
		}
		*out = append(*out, RawEntity{
			Name: val,
			Type: t,
			Mentions: []Mention{{
				Context:   key + ": " + val,
				Position:  0,
				Relevance: 0.3,
			}},
		})
	}
}

// jsonKeyHeuristic types a JSON string value by its key name.
func jsonKeyHeuristic(key string) store.EntityType {
	lower := strings.ToLower(key)
	switch {
	case strings.Contains(lower, "name") || strings.Contains(lower, "author"):
		return store.EntityTypePerson
	case strings.Contains(lower, "org") || strings.Contains(lower, "company"):
		return store.EntityTypeOrganization
	case strings.Contains(lower, "city") || strings.Contains(lower, "country") || strings.Contains(lower, "location") ||
		strings.Contains(lower, "headquarters") || strings.Contains(lower, "address") || lower == "hq":
		return store.EntityTypeLocation
	case strings.Contains(lower, "date") || strings.Contains(lower, "time") || strings.Contains(lower, "founded") ||
		strings.Contains(lower, "established") || strings.Contains(lower, "created"):
		return store.EntityTypeDate
	case strings.Contains(lower, "product"):
		return store.EntityTypeProduct
	default:
		return store.EntityTypeOther
	}
}

// extractXML walks element names and text content, typed Other by
// default, the XML analogue of extractJSON's key/value walk.
func (r *RuleExtractor) extractXML(text string, opts Options) Result {
	if !allowsType(opts, store.EntityTypeOther) {
		return Result{ContentLength: len(text), Success: true}
	}
	decoder := xml.NewDecoder(strings.NewReader(text))
	var entities []RawEntity
	var currentTag string
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			currentTag = t.Name.Local
		case xml.CharData:
			val := strings.TrimSpace(string(t))
			if val == "" || currentTag == "" {
				continue
			}
			entities = append(entities, RawEntity{
				Name: val,
				Type: store.EntityTypeOther,
				Mentions: []Mention{{
					Context:   currentTag + ": " + val,
					Position:  0,
					Relevance: 0.3,
				}},
			})
		}
	}
	return Result{Entities: entities, Confidence: 0.3, ContentLength: len(text), Success: true}
}

type positioned struct {
	text string
	pos  int
}

func findAllWithPosition(re *regexp.Regexp, text string) []positioned {
	idx := re.FindAllStringIndex(text, -1)
	out := make([]positioned, 0, len(idx))
	for _, loc := range idx {
		out = append(out, positioned{text: text[loc[0]:loc[1]], pos: loc[0]})
	}
	return out
}

func newRawEntity(name string, typ store.EntityType, pos int, text string, opts Options) RawEntity {
	ctx := ""
	if opts.ExtractMentions {
		ctx = contextWindow(text, pos, len(name))
	}
	return RawEntity{
		Name: name,
		Type: typ,
		Mentions: []Mention{{
			Context:   ctx,
			Position:  pos,
			Relevance: 0.6,
		}},
	}
}

// contextWindow returns the mention plus up to 40 bytes of surrounding
// text on each side, trimmed of outer whitespace.
func contextWindow(text string, pos, length int) string {
	const radius = 40
	start := pos - radius
	if start < 0 {
		start = 0
	}
	end := pos + length + radius
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}
