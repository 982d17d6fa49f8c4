package cascade

import "encoding/json"

// WireConfig is the snake_case wire/storage shape of Resolved — the
// single converter named in spec §9 ("the camelCase/snake_case boundary
// lives in a single converter; storage and wire are snake_case,
// in-process is camelCase"). Every boundary that serializes a resolved
// bundle (the queue job payload, the diagnostic log's resolved_config
// column) goes through ToWire/ToResolved rather than marshaling Resolved
// directly, so a provider field rename only touches this file.
type WireConfig struct {
	Provider            string             `json:"provider,omitempty"`
	Model               string             `json:"model,omitempty"`
	VisionModel         string             `json:"vision_model,omitempty"`
	Temperature         *float64           `json:"temperature,omitempty"`
	TopP                *float64           `json:"top_p,omitempty"`
	TopK                *float64           `json:"top_k,omitempty"`
	FrequencyPenalty    *float64           `json:"frequency_penalty,omitempty"`
	PresencePenalty     *float64           `json:"presence_penalty,omitempty"`
	RepetitionPenalty   *float64           `json:"repetition_penalty,omitempty"`
	MinP                *float64           `json:"min_p,omitempty"`
	TopA                *float64           `json:"top_a,omitempty"`
	Seed                *int               `json:"seed,omitempty"`
	MaxTokens           *int               `json:"max_tokens,omitempty"`
	Stop                []string           `json:"stop,omitempty"`
	LogitBias           map[string]float64 `json:"logit_bias,omitempty"`
	ResponseFormat      string             `json:"response_format,omitempty"`
	ShowThinking        bool               `json:"show_thinking,omitempty"`
	Reasoning           *wireReasoning     `json:"reasoning,omitempty"`
	Transforms          []string           `json:"transforms,omitempty"`
	Route               string             `json:"route,omitempty"`
	Verbosity           string             `json:"verbosity,omitempty"`
	ContextWindowTokens int                `json:"context_window_tokens,omitempty"`
	SystemPromptBody    string             `json:"-"`
}

type wireReasoning struct {
	Effort    string `json:"effort,omitempty"`
	MaxTokens *int   `json:"max_tokens,omitempty"`
	Exclude   bool   `json:"exclude,omitempty"`
	Enabled   bool   `json:"enabled,omitempty"`
}

// ToWire converts a resolved bundle to its snake_case wire shape.
// SystemPromptBody never crosses the wire to the inference worker (it is
// folded into the composed message list by ctxassembly before the job
// is enqueued), so it round-trips only within the same process.
func ToWire(r Resolved) WireConfig {
	w := WireConfig{
		Provider:            r.Provider,
		Model:               r.Model,
		VisionModel:         r.VisionModel,
		Temperature:         r.Temperature,
		TopP:                r.TopP,
		TopK:                r.TopK,
		FrequencyPenalty:    r.FrequencyPenalty,
		PresencePenalty:     r.PresencePenalty,
		RepetitionPenalty:   r.RepetitionPenalty,
		MinP:                r.MinP,
		TopA:                r.TopA,
		Seed:                r.Seed,
		MaxTokens:           r.MaxTokens,
		Stop:                r.Stop,
		LogitBias:           r.LogitBias,
		ResponseFormat:      r.ResponseFormat,
		ShowThinking:        r.ShowThinking,
		Transforms:          r.Transforms,
		Route:               r.Route,
		Verbosity:           r.Verbosity,
		ContextWindowTokens: r.ContextWindowTokens,
		SystemPromptBody:    r.SystemPromptBody,
	}
	if r.Reasoning.Effort != "" || r.Reasoning.MaxTokens != nil || r.Reasoning.Enabled || r.Reasoning.Exclude {
		w.Reasoning = &wireReasoning{
			Effort:    r.Reasoning.Effort,
			MaxTokens: r.Reasoning.MaxTokens,
			Exclude:   r.Reasoning.Exclude,
			Enabled:   r.Reasoning.Enabled,
		}
	}
	return w
}

// ToResolved converts a wire bundle back to its in-process shape.
func (w WireConfig) ToResolved() Resolved {
	r := Resolved{
		Provider:            w.Provider,
		Model:               w.Model,
		VisionModel:         w.VisionModel,
		Temperature:         w.Temperature,
		TopP:                w.TopP,
		TopK:                w.TopK,
		FrequencyPenalty:    w.FrequencyPenalty,
		PresencePenalty:     w.PresencePenalty,
		RepetitionPenalty:   w.RepetitionPenalty,
		MinP:                w.MinP,
		TopA:                w.TopA,
		Seed:                w.Seed,
		MaxTokens:           w.MaxTokens,
		Stop:                w.Stop,
		LogitBias:           w.LogitBias,
		ResponseFormat:      w.ResponseFormat,
		ShowThinking:        w.ShowThinking,
		Transforms:          w.Transforms,
		Route:               w.Route,
		Verbosity:           w.Verbosity,
		ContextWindowTokens: w.ContextWindowTokens,
		SystemPromptBody:    w.SystemPromptBody,
	}
	if w.Reasoning != nil {
		r.Reasoning = ReasoningConfig{
			Effort:    w.Reasoning.Effort,
			MaxTokens: w.Reasoning.MaxTokens,
			Exclude:   w.Reasoning.Exclude,
			Enabled:   w.Reasoning.Enabled,
		}
	}
	return r
}

// MarshalWire and UnmarshalWire are the two ends job producers/consumers
// actually call, so neither side needs to import encoding/json just to
// move a Resolved bundle across the queue.
func MarshalWire(r Resolved) ([]byte, error) {
	return json.Marshal(ToWire(r))
}

func UnmarshalWire(data []byte) (Resolved, error) {
	var w WireConfig
	if err := json.Unmarshal(data, &w); err != nil {
		return Resolved{}, err
	}
	return w.ToResolved(), nil
}
