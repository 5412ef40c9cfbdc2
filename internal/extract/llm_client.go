package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	ingesterrors "github.com/DrunkOnJava/ingestor-service/internal/errors"
	"github.com/DrunkOnJava/ingestor-service/internal/probe"
)

// Default LLM transport settings (spec §4.4).
const (
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 3
	DefaultMaxTokens  = 4096
	DefaultTemperature = 0.7
)

// LLMClient routes extraction requests to a remote LLM extraction
// service (spec §4.4, §6 "LLM extraction service (consumed)"). Grounded
// on the teacher's internal/index/contextual_llm.go HTTP request shape,
// generalized from Ollama's /api/generate to the bearer-authenticated
// JSON endpoint spec §6 names, and wrapped in retry + circuit breaker
// per the AMBIENT STACK.
type LLMClient struct {
	client   *http.Client
	endpoint string
	apiKey   string
	model    string

	retryConfig ingesterrors.RetryConfig
	breaker     *ingesterrors.CircuitBreaker
}

// llmRequest is the request body sent to the LLM extraction service.
type llmRequest struct {
	SystemPrompt string  `json:"systemPrompt"`
	UserText     string  `json:"userText"`
	MaxTokens    int     `json:"maxTokens"`
	Temperature  float64 `json:"temperature"`
}

// llmResponse is the strict-JSON reply matching the entity schema of §4.4.
type llmResponse struct {
	Entities      []RawEntity `json:"entities"`
	Confidence    float64     `json:"confidence"`
	ContentLength int         `json:"contentLength"`
}

// NewLLMClient builds an LLMClient. endpoint == "" means the LLM is
// unreachable by configuration; callers should check Available or let
// Extract fail fast to the fallback cascade.
func NewLLMClient(endpoint, apiKey, model string, timeout time.Duration, maxRetries int) *LLMClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cfg := ingesterrors.DefaultRetryConfig()
	cfg.MaxRetries = maxRetries
	if maxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	return &LLMClient{
		client:      &http.Client{Timeout: timeout},
		endpoint:    endpoint,
		apiKey:      apiKey,
		model:       model,
		retryConfig: cfg,
		breaker:     ingesterrors.NewCircuitBreaker("llm-extractor"),
	}
}

// Available reports whether the client has a configured endpoint.
func (c *LLMClient) Available() bool {
	return c != nil && c.endpoint != ""
}

// Extract calls the LLM twice per spec's fallback ordering: first with a
// kind-specialized prompt, then (only if the specialized call returns an
// empty entity list) with a generic analysis prompt. Only
// LLMTransportError after retry exhaustion and LLMRateLimited trigger a
// caller-visible fallback signal; LLMParseError also signals fallback.
// ExtractorUnsupported never originates here (that's RuleExtractor's
// image/video no-op case).
func (c *LLMClient) Extract(ctx context.Context, text string, kind probe.Kind, opts Options) (Result, error) {
	if !c.Available() {
		return Result{}, ingesterrors.LLMTransportError("LLM client has no configured endpoint", nil)
	}

	result, err := c.call(ctx, specializedPrompt(kind), text, opts)
	if err == nil && len(result.Entities) > 0 {
		return result, nil
	}
	if err != nil && !isFallbackTrigger(err) {
		return Result{}, err
	}

	result, err = c.call(ctx, genericPrompt, text, opts)
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func isFallbackTrigger(err error) bool {
	code := ingesterrors.GetCode(err)
	switch code {
	case "ERR_301_LLM_TRANSPORT", "ERR_302_LLM_RATE_LIMITED", "ERR_303_LLM_PARSE":
		return true
	}
	return false
}

// call performs one retried, circuit-breaker-guarded HTTP round trip.
func (c *LLMClient) call(ctx context.Context, systemPrompt, text string, opts Options) (Result, error) {
	fallback := func() (Result, error) {
		return Result{}, ingesterrors.LLMTransportError("circuit breaker open", ingesterrors.ErrCircuitOpen)
	}

	return ingesterrors.ExecuteWithResult(c.breaker, func() (Result, error) {
		var resp llmResponse
		var hardErr error
		err := ingesterrors.Retry(ctx, c.retryConfig, func() error {
			r, callErr := c.doRequest(ctx, systemPrompt, text)
			if callErr != nil {
				if !ingesterrors.IsRetryable(callErr) {
					// Parse errors and other non-transient failures end
					// the retry loop at once.
					hardErr = callErr
					return nil
				}
				return callErr
			}
			resp = r
			return nil
		})
		if err == nil && hardErr != nil {
			err = hardErr
		}
		if err != nil {
			return Result{}, classifyTransportErr(err)
		}
		return Result{
			Entities:      filterByOptions(resp.Entities, opts),
			Confidence:    resp.Confidence,
			ContentLength: resp.ContentLength,
			Success:       true,
		}, nil
	}, fallback)
}

func classifyTransportErr(err error) error {
	var ie *ingesterrors.IngestError
	if errors.As(err, &ie) {
		return ie
	}
	return ingesterrors.LLMTransportError(err.Error(), err)
}

func filterByOptions(entities []RawEntity, opts Options) []RawEntity {
	out := entities[:0:0]
	for _, e := range entities {
		if allowsType(opts, e.Type) {
			out = append(out, e)
		}
	}
	return out
}

func (c *LLMClient) doRequest(ctx context.Context, systemPrompt, text string) (llmResponse, error) {
	reqBody := llmRequest{
		SystemPrompt: systemPrompt,
		UserText:     text,
		MaxTokens:    DefaultMaxTokens,
		Temperature:  DefaultTemperature,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return llmResponse{}, ingesterrors.InternalError("marshal LLM request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return llmResponse{}, ingesterrors.InternalError("build LLM request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return llmResponse{}, ingesterrors.LLMTransportError("LLM request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return llmResponse{}, ingesterrors.LLMRateLimitedError("LLM rate limited", nil)
	}
	if resp.StatusCode >= 500 {
		return llmResponse{}, ingesterrors.LLMTransportError(fmt.Sprintf("LLM server error %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return llmResponse{}, ingesterrors.LLMParseError(fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var out llmResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return llmResponse{}, ingesterrors.LLMParseError("non-JSON or schema-invalid LLM reply", err)
	}
	return out, nil
}

// specializedPrompt routes to a kind-specific system prompt (spec §4.4).
func specializedPrompt(kind probe.Kind) string {
	switch kind {
	case probe.KindCodePython, probe.KindCodeJS, probe.KindCodeGeneric, probe.KindShell:
		return "Extract named entities (classes, functions, imports, technologies) from this source code. Respond with strict JSON matching the entity schema."
	case probe.KindMarkdown, probe.KindText:
		return "Extract named entities (people, organizations, locations, dates, products, events) from this prose. Respond with strict JSON matching the entity schema."
	case probe.KindJSON, probe.KindXML:
		return "Extract named entities from this structured data's key/value content. Respond with strict JSON matching the entity schema."
	default:
		return genericPrompt
	}
}

const genericPrompt = "Extract any named entities present in this content. Respond with strict JSON matching the entity schema."
