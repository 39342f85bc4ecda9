package enrich

import (
	"errors"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewOpenAIModel builds an OpenAI-compatible model client. baseURL is
// optional and allows pointing at any compatible gateway.
func NewOpenAIModel(apiKey, model, baseURL string) (llms.Model, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	return openai.New(opts...)
}
