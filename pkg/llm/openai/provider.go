package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Voldemort0731/fiwb-mvp/pkg/llm"

	openai "github.com/sashabaranov/go-openai"
)

// Provider implements llm.Provider on top of the OpenAI chat completions API.
type Provider struct {
	client *openai.Client
	model  string
}

func NewProvider(apiKey, baseURL, model string) *Provider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Provider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	req := p.buildRequest(history, llm.ApplyOptions(options))

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) ChatStream(ctx context.Context, history []llm.Message, fn llm.StreamFunc, options ...llm.Option) (string, error) {
	req := p.buildRequest(history, llm.ApplyOptions(options))
	req.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create openai chat completion stream: %w", err)
	}
	defer stream.Close()

	var full string
	deliver := fn != nil
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return full, fmt.Errorf("receive stream chunk: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		full += token
		if deliver {
			if err := fn(token); err != nil {
				// Consumer gave up (e.g. client disconnect). Keep draining so
				// the accumulated response stays complete.
				deliver = false
			}
		}
	}

	return full, nil
}

func (p *Provider) buildRequest(history []llm.Message, opts llm.Options) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: float32(opts.Temperature),
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	req.Messages = make([]openai.ChatCompletionMessage, len(history))
	for i, msg := range history {
		req.Messages[i] = toOpenAIMessage(msg)
	}
	return req
}

func toOpenAIMessage(msg llm.Message) openai.ChatCompletionMessage {
	if len(msg.Parts) == 0 {
		return openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	parts := make([]openai.ChatMessagePart, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		switch part.Type {
		case "image_url":
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: part.ImageURL},
			})
		default:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: part.Text,
			})
		}
	}
	return openai.ChatCompletionMessage{
		Role:         msg.Role,
		MultiContent: parts,
	}
}
