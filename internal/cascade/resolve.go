package cascade

import (
	"context"
	"fmt"

	"tzurot/internal/db"
	"tzurot/internal/model"
)

// Resolved is the cascade's output: the effective generation config for
// one turn, exposed in camelCase per spec §4.2. The storage/wire layer is
// snake_case; the camelCase/snake_case boundary is WireConfig/ToWire/
// ToResolved in wire.go.
type Resolved struct {
	Provider           string
	Model              string
	VisionModel        string
	Temperature        *float64
	TopP               *float64
	TopK               *float64
	FrequencyPenalty   *float64
	PresencePenalty    *float64
	RepetitionPenalty  *float64
	MinP               *float64
	TopA               *float64
	Seed               *int
	MaxTokens          *int
	Stop               []string
	LogitBias          map[string]float64
	ResponseFormat     string
	ShowThinking       bool
	Reasoning          ReasoningConfig
	Transforms         []string
	Route              string
	Verbosity          string
	ContextWindowTokens int
	SystemPromptBody   string

	// HistoryTurnLimit, MemoryTopK, and MemoryMaxDistance are C3's cascade
	// leaves (spec §4.3: "N derives from extended-context settings...
	// admin default 20", "K from resolved config, typical 5", "Threshold
	// by configured minimum similarity"). They fold through the same five
	// layers as every other leaf rather than living in a separate config
	// path.
	HistoryTurnLimit  int
	MemoryTopK        int
	MemoryMaxDistance float64
}

// ReasoningConfig mirrors the wire shape named in spec §4.2.
type ReasoningConfig struct {
	Effort    string
	MaxTokens *int
	Exclude   bool
	Enabled   bool
}

// Resolver folds the five cascade layers named in spec §4.2: global
// defaults, personality defaults, user-personality LLM/persona override,
// user-personality config_overrides document, and channel overrides.
type Resolver struct {
	llmConfigs    *db.LlmConfigRepo
	personalities *db.PersonalityRepo
	systemPrompts *db.SystemPromptRepo
	userConfigs   *db.UserPersonalityConfigRepo
	channels      *db.ActivatedChannelRepo
}

func NewResolver(llmConfigs *db.LlmConfigRepo, personalities *db.PersonalityRepo, systemPrompts *db.SystemPromptRepo, userConfigs *db.UserPersonalityConfigRepo, channels *db.ActivatedChannelRepo) *Resolver {
	return &Resolver{
		llmConfigs:    llmConfigs,
		personalities: personalities,
		systemPrompts: systemPrompts,
		userConfigs:   userConfigs,
		channels:      channels,
	}
}

// Resolve folds the cascade for (userID, personality, channelID) and
// returns the validated, resolved bundle. Two calls against the same
// row-set with no intervening writes return an identical Resolved value
// (spec §8 universal property).
func (r *Resolver) Resolve(ctx context.Context, userID string, personality model.Personality, channelID string) (Resolved, []ValidationIssue, error) {
	layers := make([]map[string]any, 0, 5)

	globalDefault, err := r.llmConfigs.GlobalDefault(ctx)
	if err == nil {
		layers = append(layers, globalDefault.AdvancedParameters)
	} else if err != db.ErrNotFound {
		return Resolved{}, nil, fmt.Errorf("resolve cascade: global default llm config: %w", err)
	}

	var resolvedModel, resolvedProvider string
	if globalDefault.Model != "" {
		resolvedModel = globalDefault.Model
		resolvedProvider = globalDefault.Provider
	}

	base, err := r.llmConfigs.GetByID(ctx, personality.BaseLlmConfigID)
	if err != nil && err != db.ErrNotFound {
		return Resolved{}, nil, fmt.Errorf("resolve cascade: personality base llm config: %w", err)
	}
	if err == nil {
		layers = append(layers, base.AdvancedParameters)
		if base.Model != "" {
			resolvedModel = base.Model
			resolvedProvider = base.Provider
		}
	}

	systemPromptBody := ""
	if personality.SystemPromptID != "" {
		sp, err := r.systemPrompts.GetByID(ctx, personality.SystemPromptID)
		if err == nil {
			systemPromptBody = sp.Body
		} else if err != db.ErrNotFound {
			return Resolved{}, nil, fmt.Errorf("resolve cascade: system prompt: %w", err)
		}
	}
	if systemPromptBody == "" {
		if sp, err := r.systemPrompts.Default(ctx); err == nil {
			systemPromptBody = sp.Body
		}
	}

	upc, overrides, err := r.userConfigs.Get(ctx, userID, personality.ID)
	if err == nil {
		if upc.LlmConfigID != "" {
			if uc, err := r.llmConfigs.GetByID(ctx, upc.LlmConfigID); err == nil {
				layers = append(layers, uc.AdvancedParameters)
				if uc.Model != "" {
					resolvedModel = uc.Model
					resolvedProvider = uc.Provider
				}
			}
		}
		layers = append(layers, overrides)
	} else if err != db.ErrNotFound {
		return Resolved{}, nil, fmt.Errorf("resolve cascade: user personality config: %w", err)
	}

	if ch, err := r.channels.GetByChannel(ctx, channelID); err == nil {
		chLayer := map[string]any{}
		if ch.DedupSimilarityOverride != nil {
			chLayer["dedupSimilarity"] = *ch.DedupSimilarityOverride
		}
		layers = append(layers, chLayer)
	} else if err != db.ErrNotFound {
		return Resolved{}, nil, fmt.Errorf("resolve cascade: activated channel: %w", err)
	}

	merged := Fold(layers)
	validated, issues := ValidateAdvancedParams(merged)

	out := Resolved{
		Provider:         resolvedProvider,
		Model:            resolvedModel,
		SystemPromptBody: systemPromptBody,
	}
	applyLeaves(&out, validated)
	if issue, dropped := enforceReasoningBudget(&out); dropped {
		issues = append(issues, issue)
	}
	out = dropUnsafeReasoningCombination(out)
	return out, issues, nil
}

// enforceReasoningBudget drops reasoning.maxTokens if it is not strictly
// less than the resolved top-level maxTokens (spec §4.2: "if
// reasoning.maxTokens is set it must be < top-level maxTokens"). The
// range check in ValidateAdvancedParams happens per-leaf, before the
// top-level maxTokens this leaf is bounded against is even resolved, so
// the cross-field comparison has to happen here instead.
func enforceReasoningBudget(out *Resolved) (ValidationIssue, bool) {
	if out.Reasoning.MaxTokens == nil || out.MaxTokens == nil {
		return ValidationIssue{}, false
	}
	if *out.Reasoning.MaxTokens < *out.MaxTokens {
		return ValidationIssue{}, false
	}
	out.Reasoning.MaxTokens = nil
	return ValidationIssue{Path: "reasoning.maxTokens", Reason: "must be less than top-level maxTokens"}, true
}

// responseFormatReasoningAllowList names providers known to accept
// reasoning alongside a structured response_format. Open Question #2
// (spec §9): absent source guidance, fail open on the reasoning field
// rather than the response format, since callers depend on the latter.
var responseFormatReasoningAllowList = map[string]bool{}

func dropUnsafeReasoningCombination(r Resolved) Resolved {
	if r.ResponseFormat == "" || r.Reasoning.Effort == "" && r.Reasoning.MaxTokens == nil {
		return r
	}
	if responseFormatReasoningAllowList[r.Provider] {
		return r
	}
	r.Reasoning = ReasoningConfig{}
	return r
}

// Fold merges an ordered list of partial-config layers, highest
// precedence last, with deep-merge on object-shaped leaves (notably
// "reasoning") and shallow-override on scalars, per spec §9.
func Fold(layers []map[string]any) map[string]any {
	out := map[string]any{}
	for _, layer := range layers {
		for k, v := range layer {
			if existing, ok := out[k]; ok {
				existingObj, existingIsObj := existing.(map[string]any)
				incomingObj, incomingIsObj := v.(map[string]any)
				if existingIsObj && incomingIsObj {
					out[k] = Fold([]map[string]any{existingObj, incomingObj})
					continue
				}
			}
			out[k] = v
		}
	}
	return out
}

func applyLeaves(out *Resolved, doc map[string]any) {
	if v, ok := doc["temperature"].(float64); ok {
		out.Temperature = &v
	}
	if v, ok := doc["topP"].(float64); ok {
		out.TopP = &v
	}
	if v, ok := doc["topK"].(float64); ok {
		out.TopK = &v
	}
	if v, ok := doc["frequencyPenalty"].(float64); ok {
		out.FrequencyPenalty = &v
	}
	if v, ok := doc["presencePenalty"].(float64); ok {
		out.PresencePenalty = &v
	}
	if v, ok := doc["repetitionPenalty"].(float64); ok {
		out.RepetitionPenalty = &v
	}
	if v, ok := doc["minP"].(float64); ok {
		out.MinP = &v
	}
	if v, ok := doc["topA"].(float64); ok {
		out.TopA = &v
	}
	if v, ok := doc["maxTokens"].(float64); ok {
		n := int(v)
		out.MaxTokens = &n
	}
	if v, ok := doc["responseFormat"].(string); ok {
		out.ResponseFormat = v
	}
	if v, ok := doc["showThinking"].(bool); ok {
		out.ShowThinking = v
	}
	if v, ok := doc["contextWindowTokens"].(float64); ok {
		out.ContextWindowTokens = int(v)
	}
	if reasoning, ok := doc["reasoning"].(map[string]any); ok {
		if effort, ok := reasoning["effort"].(string); ok {
			out.Reasoning.Effort = effort
		}
		if mt, ok := reasoning["maxTokens"].(float64); ok {
			n := int(mt)
			out.Reasoning.MaxTokens = &n
		}
		if excl, ok := reasoning["exclude"].(bool); ok {
			out.Reasoning.Exclude = excl
		}
		if en, ok := reasoning["enabled"].(bool); ok {
			out.Reasoning.Enabled = en
		}
	}

	// reasoning.effort and top-level maxTokens are mutually exclusive at
	// the wire; if both present, effort wins (spec §4.2).
	if out.Reasoning.Effort != "" {
		out.MaxTokens = nil
	}

	if out.ContextWindowTokens <= 0 {
		out.ContextWindowTokens = 8192
	}

	if v, ok := doc["historyTurnLimit"].(float64); ok {
		out.HistoryTurnLimit = int(v)
	}
	if out.HistoryTurnLimit <= 0 {
		out.HistoryTurnLimit = 20
	}
	if v, ok := doc["memoryTopK"].(float64); ok {
		out.MemoryTopK = int(v)
	}
	if out.MemoryTopK <= 0 {
		out.MemoryTopK = 5
	}
	if v, ok := doc["memoryMaxDistance"].(float64); ok {
		out.MemoryMaxDistance = v
	}
	if out.MemoryMaxDistance <= 0 {
		out.MemoryMaxDistance = 0.35
	}
}
