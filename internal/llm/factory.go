package llm

import (
	"fmt"

	"jarvis/internal/config"
)

// Factory creates LLM backends from the configured credentials.
type Factory struct {
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	YandexOAuthToken string
	YandexFolderID   string
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		AnthropicAPIKey:  cfg.AnthropicAPIKey,
		YandexOAuthToken: cfg.YandexOAuthToken,
		YandexFolderID:   cfg.YandexFolderID,
	}
}

func (f *Factory) CreateBackend(provider config.LLMProvider, model string) (Backend, error) {
	switch provider {
	case config.ProviderOpenAI:
		return NewOpenAI(f.OpenAIAPIKey, f.OpenAIBaseURL, model), nil
	case config.ProviderAnthropic:
		return NewAnthropic(f.AnthropicAPIKey, model), nil
	case config.ProviderYandex:
		return NewYandex(f.YandexOAuthToken, f.YandexFolderID)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}
