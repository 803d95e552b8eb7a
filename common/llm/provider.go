package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	DefaultModel          = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// ErrEmptyResponse is returned when a completion has no usable content.
var ErrEmptyResponse = errors.New("empty response from openai api")

// Schema describes the JSON object a structured completion must produce.
type Schema struct {
	Name        string
	Description string
	Definition  any
}

// Provider implements text completion, structured completion and embeddings on
// the OpenAI API.
type Provider struct {
	client         openai.Client
	model          string
	embeddingModel string
	options        []option.RequestOption
}

// New returns a Provider configured by opts.
func New(opts ...Option) *Provider {
	p := &Provider{
		model:          DefaultModel,
		embeddingModel: DefaultEmbeddingModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client = openai.NewClient(p.options...)
	return p
}

func (p *Provider) Name() string {
	return "openai"
}

func (p *Provider) ModelName() string {
	return p.model
}

// Complete answers the prompt with free text.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	return p.chat(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(0),
	})
}

// CompleteJSON answers the prompt with a JSON object conforming to schema.
// The raw JSON text is returned; validating it is the caller's job.
func (p *Provider) CompleteJSON(ctx context.Context, prompt string, schema Schema) (string, error) {
	param := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:   schema.Name,
		Schema: schema.Definition,
		Strict: openai.Bool(true),
	}
	if schema.Description != "" {
		param.Description = openai.String(schema.Description)
	}
	return p.chat(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: param},
		},
	})
}

func (p *Provider) chat(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("error making request: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	msg := completion.Choices[0].Message
	if msg.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", msg.Refusal)
	}
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// Embed returns one vector per input text, in input order.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("error making embedding request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
