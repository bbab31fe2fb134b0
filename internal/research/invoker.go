package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/fedresearch-cli/internal/model"
	"github.com/sells-group/fedresearch-cli/pkg/anthropic"
)

const researchSystemText = "You are a business-development researcher for a federal contracting team. " +
	"Research the given contact or organization using web search, then return a single valid JSON object " +
	"and nothing else. Use null or omit fields you could not verify; never invent data."

const researchPromptTemplate = `Research the following %s and summarize what a federal BD team should know.

%s
Return a JSON object with these fields:
{"overview": "<2-3 sentence summary>", "certifications": [...], "contacts": [...], "agencies": [...], "contracts": [...], "sources": ["<url>", ...], "confidence": "high|medium|low", "notes": "<anything noteworthy>"}`

// Invoker performs one research call per entity. It never returns an error
// outward: any failure produces a fallback profile so the orchestrator can
// keep a uniform flow and the rate controller still sees the degradation.
type Invoker struct {
	client  anthropic.Client
	model   string
	maxTok  int64
	maxUses int64
	timeout time.Duration
	focus   *Focus
	now     func() time.Time
}

// InvokerOpts configures an Invoker.
type InvokerOpts struct {
	Model         string
	MaxTokens     int64
	MaxSearchUses int64
	Timeout       time.Duration
	Focus         *Focus
}

// NewInvoker creates an Invoker.
func NewInvoker(client anthropic.Client, opts InvokerOpts) *Invoker {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	if opts.MaxSearchUses <= 0 {
		opts.MaxSearchUses = 5
	}
	return &Invoker{
		client:  client,
		model:   opts.Model,
		maxTok:  opts.MaxTokens,
		maxUses: opts.MaxSearchUses,
		timeout: opts.Timeout,
		focus:   opts.Focus,
		now:     time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (iv *Invoker) WithNow(now func() time.Time) *Invoker {
	iv.now = now
	return iv
}

// Invoke researches one entity. Returns a fresh profile on success, or a
// fallback profile (method "fallback", confidence low, payload limited to
// the fields already known) on any failure: network error, timeout,
// unparseable response, missing credentials.
func (iv *Invoker) Invoke(ctx context.Context, e model.Entity) *model.Profile {
	log := zap.L().With(zap.String("entity", e.Key()))

	if iv.client == nil {
		log.Warn("research: no API client configured, returning fallback")
		return iv.fallback(e)
	}

	ctx, cancel := context.WithTimeout(ctx, iv.timeout)
	defer cancel()

	resp, err := iv.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:         iv.model,
		MaxTokens:     iv.maxTok,
		System:        researchSystemText,
		MaxSearchUses: iv.maxUses,
		Messages: []anthropic.Message{
			{Role: "user", Content: iv.buildPrompt(e)},
		},
	})
	if err != nil {
		log.Warn("research: invocation failed, returning fallback", zap.Error(err))
		return iv.fallback(e)
	}

	resp.Usage.LogCost(iv.model, e.Key())

	cleaned := cleanJSON(resp.Text())
	var raw map[string]any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		log.Warn("research: unparseable response, returning fallback", zap.Error(err))
		return iv.fallback(e)
	}

	return &model.Profile{
		Method:       model.MethodFresh,
		Confidence:   confidenceFrom(raw),
		ResearchedAt: iv.now().UTC(),
		Payload:      json.RawMessage(cleaned),
	}
}

// buildPrompt assembles the research prompt from the entity's known fields
// and the optional focus configuration.
func (iv *Invoker) buildPrompt(e model.Entity) string {
	var b strings.Builder

	kind := "organization"
	if e.Kind == model.KindContact {
		kind = "person"
	}

	fmt.Fprintf(&b, "Name: %s\n", e.Name)
	if e.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", e.Title)
	}
	if e.Organization != "" {
		fmt.Fprintf(&b, "Organization: %s\n", e.Organization)
	}
	if e.Agency != "" {
		fmt.Fprintf(&b, "Agency: %s\n", e.Agency)
	}
	if len(e.Contracts) > 0 {
		fmt.Fprintf(&b, "Known contracts: %s\n", strings.Join(e.Contracts, "; "))
	}
	if len(e.Agencies) > 0 {
		fmt.Fprintf(&b, "Known agencies: %s\n", strings.Join(e.Agencies, "; "))
	}

	if iv.focus != nil {
		if len(iv.focus.Emphasis) > 0 {
			fmt.Fprintf(&b, "Emphasize: %s\n", strings.Join(iv.focus.Emphasis, "; "))
		}
		if len(iv.focus.Agencies) > 0 {
			fmt.Fprintf(&b, "Focus agencies: %s\n", strings.Join(iv.focus.Agencies, "; "))
		}
		for _, q := range iv.focus.Questions {
			fmt.Fprintf(&b, "Also answer: %s\n", q)
		}
	}

	return fmt.Sprintf(researchPromptTemplate, kind, b.String())
}

// fallback builds a placeholder profile from only the fields already known
// about the entity. Method "fallback" keeps it unambiguously distinct from a
// genuine low-confidence fresh result.
func (iv *Invoker) fallback(e model.Entity) *model.Profile {
	payload, _ := json.Marshal(model.Findings{
		Contracts: e.Contracts,
		Agencies:  e.Agencies,
		Notes:     "research unavailable; known fields only",
	})
	return &model.Profile{
		Method:       model.MethodFallback,
		Confidence:   model.ConfidenceLow,
		ResearchedAt: iv.now().UTC(),
		Payload:      payload,
	}
}

// confidenceFrom reads the confidence tier from a parsed result, inferring
// one from how much data was found when the field is absent or invalid.
func confidenceFrom(raw map[string]any) model.Confidence {
	if s, ok := raw["confidence"].(string); ok {
		switch model.Confidence(strings.ToLower(s)) {
		case model.ConfidenceHigh:
			return model.ConfidenceHigh
		case model.ConfidenceMedium:
			return model.ConfidenceMedium
		case model.ConfidenceLow:
			return model.ConfidenceLow
		}
	}

	populated := 0
	for key, v := range raw {
		if key == "confidence" || key == "notes" || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			if strings.TrimSpace(val) != "" {
				populated++
			}
		case []any:
			if len(val) > 0 {
				populated++
			}
		default:
			populated++
		}
	}

	switch {
	case populated >= 4:
		return model.ConfidenceHigh
	case populated >= 2:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
