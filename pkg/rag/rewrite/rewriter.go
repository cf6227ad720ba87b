package rewrite

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Voldemort0731/fiwb-mvp/internal/constant"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/pkg/llm"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag"
	"github.com/Voldemort0731/fiwb-mvp/pkg/usage"
)

const (
	maxHistoryTurns  = 5
	maxTurnChars     = 300
	rewriteMaxTokens = 100
)

// UsageLedger is the write-only accounting sink for rewrite calls.
type UsageLedger interface {
	LogUsage(ctx context.Context, userEmail string, tokens int, category usage.Category)
}

// Rewriter turns a follow-up question into a standalone search query using
// the recent conversation. Strictly best-effort: any failure returns the
// original query untouched.
type Rewriter struct {
	provider llm.Provider
	ledger   UsageLedger
	logger   logger.ILogger
}

func NewRewriter(provider llm.Provider, ledger UsageLedger, log logger.ILogger) *Rewriter {
	return &Rewriter{
		provider: provider,
		ledger:   ledger,
		logger:   log,
	}
}

// Rewrite contextualizes query against the last turns. Empty history returns
// the query as-is without any model call.
func (r *Rewriter) Rewrite(ctx context.Context, userEmail, query string, history []rag.Turn) string {
	if len(history) == 0 {
		return query
	}

	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	var lines []string
	for _, turn := range history {
		content := turn.Content
		if len(content) > maxTurnChars {
			cut := maxTurnChars
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut]
		}
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, content))
	}

	prompt := fmt.Sprintf(constant.RewritePromptTemplate, strings.Join(lines, "\n"), query)

	r.ledger.LogUsage(ctx, userEmail, usage.CountTokens(prompt), usage.CategorySLM)

	rewritten, err := r.provider.Chat(ctx, []llm.Message{
		llm.TextMessage(llm.RoleUser, prompt),
	}, llm.WithMaxTokens(rewriteMaxTokens))
	if err != nil {
		r.logger.Warn("rewrite", "contextualization failed, using original query", map[string]interface{}{
			"error": err.Error(),
		})
		return query
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return query
	}

	r.ledger.LogUsage(ctx, userEmail, usage.CountTokens(rewritten), usage.CategorySLM)

	r.logger.Debug("rewrite", "query contextualized", map[string]interface{}{
		"original":  query,
		"rewritten": rewritten,
	})
	return rewritten
}
