package factory

import (
	"fmt"

	"github.com/Voldemort0731/fiwb-mvp/pkg/llm"
	"github.com/Voldemort0731/fiwb-mvp/pkg/llm/ollama"
	"github.com/Voldemort0731/fiwb-mvp/pkg/llm/openai"
)

func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.Provider, error) {
	switch providerType {
	case "openai":
		return openai.NewProvider(apiKey, baseURL, modelName), nil
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
