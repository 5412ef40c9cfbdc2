package extract

import (
	"context"

	"github.com/DrunkOnJava/ingestor-service/internal/probe"
)

// Extractor runs the full fallback cascade (spec §4.4): LLM with a
// specialized prompt, LLM with a generic prompt, RuleExtractor, and
// finally an empty failed result. It is the component ContentProcessor
// calls per chunk.
type Extractor struct {
	llm  *LLMClient
	rule *RuleExtractor
}

func NewExtractor(llm *LLMClient, rule *RuleExtractor) *Extractor {
	if rule == nil {
		rule = NewRuleExtractor()
	}
	return &Extractor{llm: llm, rule: rule}
}

// Extract runs the cascade and always returns a Result — even total
// failure is reported as Result{Success: false}, never a raw error, so
// ContentProcessor can aggregate per-chunk results uniformly.
func (e *Extractor) Extract(ctx context.Context, text string, kind probe.Kind, opts Options) Result {
	opts = opts.WithDefaults()

	if opts.UseLLM && e.llm.Available() {
		if result, err := e.llm.Extract(ctx, text, kind, opts); err == nil && len(result.Entities) > 0 {
			return result
		}
	}

	result := e.rule.Extract(text, kind, opts)
	if result.Success {
		return result
	}

	return Result{
		ContentLength: len(text),
		Success:       false,
		Error:         result.Error,
	}
}
