package llm

import (
	"context"
	"fmt"

	"tzurot/internal/config"
)

// BuildProvider constructs a Provider for the given provider name,
// grounded on the teacher's internal/llm/providers/factory.go switch,
// narrowed to the three families the cascade can resolve to.
func BuildProvider(ctx context.Context, providerName, model string, cfg config.LLMConfig) (Provider, error) {
	pc := cfg.Providers[providerName]
	switch providerName {
	case "", "openai", "openrouter":
		return NewOpenAIProvider(pc.APIKey, pc.BaseURL), nil
	case "anthropic":
		return NewAnthropicProvider(pc.APIKey, pc.BaseURL, model), nil
	case "google", "gemini":
		return NewGeminiProvider(ctx, pc.APIKey, model)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", providerName)
	}
}
