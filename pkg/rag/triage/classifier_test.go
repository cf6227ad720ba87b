package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/pkg/llm"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag"
)

type fakeProvider struct {
	response string
	err      error
	lastMsgs []llm.Message
}

func (f *fakeProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	f.lastMsgs = history
	return f.response, f.err
}

func (f *fakeProvider) ChatStream(ctx context.Context, history []llm.Message, fn llm.StreamFunc, options ...llm.Option) (string, error) {
	return f.Chat(ctx, history)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		want     rag.Intent
	}{
		{name: "academic label", response: "academic_question", want: rag.IntentAcademicQuestion},
		{name: "deadline label", response: "deadline_lookup", want: rag.IntentDeadlineLookup},
		{name: "chat label", response: "general_chat", want: rag.IntentGeneralChat},
		{name: "label with whitespace", response: "  deadline_lookup\n", want: rag.IntentDeadlineLookup},
		{name: "off-script label errs toward retrieval", response: "maybe_academic?", want: rag.IntentAcademicQuestion},
		{name: "notebook label never comes from the model", response: "notebook_analysis", want: rag.IntentAcademicQuestion},
		{name: "provider failure errs toward no retrieval", err: errors.New("timeout"), want: rag.IntentGeneralChat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(&fakeProvider{response: tt.response, err: tt.err}, logger.NewNoopLogger())
			if got := c.Classify(context.Background(), "some question", ""); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyAttachesImage(t *testing.T) {
	provider := &fakeProvider{response: "academic_question"}
	c := NewClassifier(provider, logger.NewNoopLogger())

	c.Classify(context.Background(), "what is on this slide?", "data:image/png;base64,AAAA")

	if len(provider.lastMsgs) != 2 {
		t.Fatalf("got %d messages, want system + user", len(provider.lastMsgs))
	}
	user := provider.lastMsgs[1]
	if len(user.Parts) != 2 {
		t.Fatalf("got %d parts, want text + image", len(user.Parts))
	}
	if user.Parts[1].Type != "image_url" || user.Parts[1].ImageURL == "" {
		t.Errorf("image part not forwarded: %+v", user.Parts[1])
	}
}
