package oracle

import (
	"context"
	"fmt"
)

// NewProvider builds the configured reasoning backend. An empty API key
// yields a nil provider, which the Advisor treats as degraded mode.
func NewProvider(ctx context.Context, providerName, apiKey, modelName string) (Provider, error) {
	if apiKey == "" {
		return nil, nil
	}
	switch providerName {
	case "gemini":
		return NewGeminiProvider(ctx, apiKey, modelName)
	default:
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}
}
