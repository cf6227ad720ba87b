package triage

import (
	"context"
	"strings"

	"github.com/Voldemort0731/fiwb-mvp/internal/constant"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/pkg/llm"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag"
)

// Classifier maps a user message to one intent label with a single model
// call. The fallbacks are deliberately asymmetric: an invalid label means
// the model answered but off-script, so we err toward retrieval
// (academic_question); a failed call means the classifier is unavailable,
// so we err toward not retrieving at all (general_chat).
type Classifier struct {
	provider llm.Provider
	logger   logger.ILogger
}

func NewClassifier(provider llm.Provider, log logger.ILogger) *Classifier {
	return &Classifier{
		provider: provider,
		logger:   log,
	}
}

var validIntents = map[rag.Intent]bool{
	rag.IntentAcademicQuestion: true,
	rag.IntentDeadlineLookup:   true,
	rag.IntentGeneralChat:      true,
}

// Classify returns the intent for a query, optionally disambiguated by an
// attached image. It never returns an error.
func (c *Classifier) Classify(ctx context.Context, query, imageDataURL string) rag.Intent {
	userMsg := llm.Message{
		Role:  llm.RoleUser,
		Parts: []llm.Part{{Type: "text", Text: query}},
	}
	if imageDataURL != "" {
		userMsg.Parts = append(userMsg.Parts, llm.Part{Type: "image_url", ImageURL: imageDataURL})
	}

	history := []llm.Message{
		llm.TextMessage(llm.RoleSystem, constant.TriageSystemPrompt),
		userMsg,
	}

	raw, err := c.provider.Chat(ctx, history, llm.WithMaxTokens(20))
	if err != nil {
		c.logger.Warn("triage", "classifier call failed, defaulting to general_chat", map[string]interface{}{
			"error": err.Error(),
		})
		return rag.IntentGeneralChat
	}

	label := rag.Intent(strings.TrimSpace(raw))
	if !validIntents[label] {
		c.logger.Debug("triage", "invalid classifier label, defaulting to academic_question", map[string]interface{}{
			"label": raw,
		})
		return rag.IntentAcademicQuestion
	}
	return label
}
