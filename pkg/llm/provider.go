package llm

import (
	"context"
)

// Part is one typed segment of a multimodal message.
type Part struct {
	Type     string // "text" or "image_url"
	Text     string
	ImageURL string // data URL or https URL
}

// Message represents a chat message in a provider-agnostic format.
// Content is used for plain text messages; Parts takes precedence when set.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
	Parts   []Part
}

// TextMessage builds a plain text message.
func TextMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
	JSONMode    bool   // Force valid-JSON output
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithJSONMode() Option {
	return func(o *Options) {
		o.JSONMode = true
	}
}

func ApplyOptions(options []Option) Options {
	var o Options
	for _, opt := range options {
		opt(&o)
	}
	return o
}

// StreamFunc receives each generated token. Returning an error stops delivery
// to the callback; the provider keeps consuming the completion to the end.
type StreamFunc func(token string) error

// Provider defines the contract for any LLM backend.
type Provider interface {
	// Chat sends a chat history to the model and returns the full response.
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// ChatStream sends a chat history and delivers tokens through fn as they
	// arrive. The accumulated response is returned when the stream ends.
	ChatStream(ctx context.Context, history []Message, fn StreamFunc, options ...Option) (string, error)
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
