package usage

import (
	"context"
	"strings"

	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/unitofwork"
)

// Category tags which backend a unit count belongs to.
type Category string

const (
	CategoryLLM Category = "llm" // main completion model
	CategorySLM Category = "slm" // small model calls (triage, rewrite, synthesis)
	CategoryMem Category = "supermemory"
)

// Rough cost estimates in USD per token/request, for the dashboard only.
const (
	llmCostPerToken = 0.0000006
	slmCostPerToken = 0.00000015
	memCostPerReq   = 0.0000200
)

// Tracker is the write-only usage ledger. Every LLM and memory-store call
// reports unit counts here; failures are logged and dropped so accounting
// can never break a request.
type Tracker struct {
	factory unitofwork.RepositoryFactory
	logger  logger.ILogger
}

func NewTracker(factory unitofwork.RepositoryFactory, log logger.ILogger) *Tracker {
	return &Tracker{
		factory: factory,
		logger:  log,
	}
}

// CountTokens is a cheap length-based token estimate, close enough for cost
// accounting without shipping a tokenizer.
func CountTokens(text string) int {
	return len(text) / 4
}

// LogUsage records token usage for one call against the user's counters.
func (t *Tracker) LogUsage(ctx context.Context, userEmail string, tokens int, category Category) {
	if tokens <= 0 {
		return
	}

	uow := t.factory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindByEmail(ctx, normalizeEmail(userEmail))
	if err != nil || user == nil {
		t.logger.Warn("usage", "usage log skipped, user lookup failed", map[string]interface{}{
			"email": userEmail,
			"error": err,
		})
		return
	}

	switch category {
	case CategorySLM:
		user.SlmTokensUsed += tokens
		user.EstimatedCostUsd += float64(tokens) * slmCostPerToken
	default:
		user.LlmTokensUsed += tokens
		user.EstimatedCostUsd += float64(tokens) * llmCostPerToken
	}

	if err := uow.UserRepository().Update(ctx, user); err != nil {
		t.logger.Warn("usage", "usage log write failed", map[string]interface{}{
			"email": userEmail,
			"error": err.Error(),
		})
	}
}

// LogMemoryRequest records one batch of memory-store search traffic.
func (t *Tracker) LogMemoryRequest(ctx context.Context, userEmail string) {
	t.bump(ctx, userEmail, func(u *userCounters) {
		u.memoryRequests++
	})
}

// LogDocumentIndexed records one document written to the memory store.
func (t *Tracker) LogDocumentIndexed(ctx context.Context, userEmail string) {
	t.bump(ctx, userEmail, func(u *userCounters) {
		u.docsIndexed++
	})
}

// LogLmsRequest records one classroom/drive API call.
func (t *Tracker) LogLmsRequest(ctx context.Context, userEmail string) {
	t.bump(ctx, userEmail, func(u *userCounters) {
		u.lmsRequests++
	})
}

type userCounters struct {
	memoryRequests int
	docsIndexed    int
	lmsRequests    int
}

func (t *Tracker) bump(ctx context.Context, userEmail string, apply func(*userCounters)) {
	uow := t.factory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindByEmail(ctx, normalizeEmail(userEmail))
	if err != nil || user == nil {
		return
	}

	var c userCounters
	apply(&c)
	user.MemoryRequestsCount += c.memoryRequests
	user.MemoryDocsIndexed += c.docsIndexed
	user.LmsRequestsCount += c.lmsRequests
	user.EstimatedCostUsd += float64(c.memoryRequests) * memCostPerReq

	if err := uow.UserRepository().Update(ctx, user); err != nil {
		t.logger.Warn("usage", "usage counter write failed", map[string]interface{}{
			"email": userEmail,
			"error": err.Error(),
		})
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
