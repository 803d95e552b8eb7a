package llm

import (
	"net/http"
	"time"

	"github.com/openai/openai-go/option"
)

// Option is a function that configures the Provider
type Option func(*Provider)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(apiKey string) Option {
	return func(p *Provider) {
		p.options = append(p.options, option.WithAPIKey(apiKey))
	}
}

// WithEndpoint sets the API endpoint URL.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		if endpoint != "" {
			p.options = append(p.options, option.WithBaseURL(endpoint))
		}
	}
}

// WithClient sets the HTTP client.
func WithClient(client *http.Client) Option {
	return func(p *Provider) {
		p.options = append(p.options, option.WithHTTPClient(client))
	}
}

// WithTimeout bounds each request, retries included.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.options = append(p.options, option.WithRequestTimeout(d))
	}
}

// WithModel sets the chat model name.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithEmbeddingModel sets the embedding model name.
func WithEmbeddingModel(model string) Option {
	return func(p *Provider) {
		p.embeddingModel = model
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(maxRetries int) Option {
	return func(p *Provider) {
		p.options = append(p.options, option.WithMaxRetries(maxRetries))
	}
}
