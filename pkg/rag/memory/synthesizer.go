package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Voldemort0731/fiwb-mvp/internal/constant"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/pkg/llm"
	"github.com/Voldemort0731/fiwb-mvp/pkg/memorystore"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag"
	"github.com/Voldemort0731/fiwb-mvp/pkg/usage"
)

const (
	recentTurns        = 3
	recentTurnChars    = 200
	rawSnapshotChars   = 300
	synthesisModelTemp = 0.3
)

// DocumentWriter is the slice of the memory store the synthesizer needs.
type DocumentWriter interface {
	AddDocument(ctx context.Context, content string, metadata map[string]interface{}, title, description string) (*memorystore.AddAck, error)
}

// UsageLedger records model token spend.
type UsageLedger interface {
	LogUsage(ctx context.Context, userEmail string, tokens int, category usage.Category)
}

// Synthesizer distills a finished exchange into a durable memory document and,
// when the exchange reveals strengths or gaps, refreshes the user's profile
// snapshot. It runs after the response has been delivered, so every failure is
// logged and dropped rather than surfaced.
type Synthesizer struct {
	provider llm.Provider
	store    DocumentWriter
	ledger   UsageLedger
	logger   logger.ILogger
}

func NewSynthesizer(provider llm.Provider, store DocumentWriter, ledger UsageLedger, log logger.ILogger) *Synthesizer {
	return &Synthesizer{
		provider: provider,
		store:    store,
		ledger:   ledger,
		logger:   log,
	}
}

// Input carries one completed exchange.
type Input struct {
	UserEmail string
	Query     string
	Response  string
	History   []rag.Turn
	// Extra is merged into the stored metadata (thread id, course id, ...).
	Extra map[string]interface{}
}

type synthesis struct {
	Title            string `json:"title"`
	Summary          string `json:"summary"`
	LearningInsights struct {
		UnderstandingLevel string   `json:"understanding_level"`
		KnowledgeGaps      []string `json:"knowledge_gaps"`
		Strengths          []string `json:"strengths"`
		Misconceptions     []string `json:"misconceptions"`
	} `json:"learning_insights"`
	UserProfile struct {
		LearningStyle           string   `json:"learning_style"`
		CommunicationPreference string   `json:"communication_preference"`
		EngagementSignals       []string `json:"engagement_signals"`
		EmotionalContext        string   `json:"emotional_context"`
	} `json:"user_profile"`
	AcademicContext struct {
		Topics          []string `json:"topics"`
		DifficultyLevel string   `json:"difficulty_level"`
		RelatedCourses  []string `json:"related_courses"`
		Prerequisites   []string `json:"prerequisites"`
	} `json:"academic_context"`
	ActionableInsights struct {
		FollowUpSuggestions     []string `json:"follow_up_suggestions"`
		PracticeRecommendations []string `json:"practice_recommendations"`
		ReviewNeeded            []string `json:"review_needed"`
	} `json:"actionable_insights"`
	Metadata struct {
		InteractionType string  `json:"interaction_type"`
		SessionContext  string  `json:"session_context"`
		ConfidenceScore float64 `json:"confidence_score"`
	} `json:"metadata"`
}

// Synthesize runs the full pipeline: model call, memory write, optional
// profile refresh. It never returns an error; a lost memory must not affect
// the conversation that produced it.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) {
	userEmail := normalizeEmail(in.UserEmail)
	userName := displayName(userEmail)

	contextStr := fmt.Sprintf("USER: %s\n\nAI: %s", in.Query, in.Response)
	if len(in.History) > 0 {
		start := len(in.History) - recentTurns
		if start < 0 {
			start = 0
		}
		var lines []string
		for _, turn := range in.History[start:] {
			lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(turn.Role), clip(turn.Content, recentTurnChars)))
		}
		contextStr = fmt.Sprintf("RECENT CONTEXT:\n%s\n\nCURRENT:\n%s", strings.Join(lines, "\n"), contextStr)
	}

	s.ledger.LogUsage(ctx, userEmail, usage.CountTokens(constant.MemorySynthesisPrompt+contextStr), usage.CategorySLM)

	raw, err := s.provider.Chat(ctx,
		[]llm.Message{
			llm.TextMessage(llm.RoleSystem, constant.MemorySynthesisPrompt),
			llm.TextMessage(llm.RoleUser, contextStr),
		},
		llm.WithTemperature(synthesisModelTemp),
		llm.WithJSONMode(),
	)
	if err != nil {
		s.logger.Warn("memory", "synthesis model call failed", map[string]interface{}{
			"user":  userEmail,
			"error": err.Error(),
		})
		return
	}
	s.ledger.LogUsage(ctx, userEmail, usage.CountTokens(raw), usage.CategorySLM)

	var data synthesis
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		s.logger.Warn("memory", "synthesis output was not valid JSON", map[string]interface{}{
			"user":  userEmail,
			"error": err.Error(),
		})
		return
	}

	content := s.renderMemory(data, in.Query, in.Response)

	metadata := map[string]interface{}{
		"user_id":          userEmail,
		"type":             rag.TypeEnhancedMemory,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"topics":           data.AcademicContext.Topics,
		"interaction_type": data.Metadata.InteractionType,
		"learning_style":   data.UserProfile.LearningStyle,
	}
	for k, v := range in.Extra {
		metadata[k] = v
	}

	title := fmt.Sprintf("💭 [%s's Memory] %s", userName, data.Title)
	if _, err := s.store.AddDocument(ctx, content, metadata, title, data.Summary); err != nil {
		s.logger.Warn("memory", "memory document write failed", map[string]interface{}{
			"user":  userEmail,
			"error": err.Error(),
		})
		return
	}

	if len(data.LearningInsights.Strengths) > 0 || len(data.LearningInsights.KnowledgeGaps) > 0 {
		s.updateProfile(ctx, userEmail, userName, data)
	}
}

func (s *Synthesizer) renderMemory(data synthesis, query, response string) string {
	learning := data.LearningInsights
	profile := data.UserProfile
	actionable := data.ActionableInsights

	return fmt.Sprintf(`
## %s
**Summary**: %s

### 🎓 Learning Insights
- **Level**: %s
- **Gaps**: %s
- **Strengths**: %s

### 👤 Profile signals
- **Style**: %s
- **Communication**: %s
- **Emotional**: %s

### 🎯 Actionable
- **Suggestions**: %s

### 💬 Raw Snapshot
**User**: %s
**AI**: %s...
`,
		data.Title,
		data.Summary,
		learning.UnderstandingLevel,
		strings.Join(learning.KnowledgeGaps, ", "),
		strings.Join(learning.Strengths, ", "),
		profile.LearningStyle,
		profile.CommunicationPreference,
		profile.EmotionalContext,
		strings.Join(actionable.FollowUpSuggestions, ", "),
		query,
		clip(response, rawSnapshotChars),
	)
}

// updateProfile overwrites the user's global profile snapshot. The store keeps
// only the latest version per user, so this is a plain add.
func (s *Synthesizer) updateProfile(ctx context.Context, userEmail, userName string, data synthesis) {
	content := fmt.Sprintf("# %s's Portfolio Profile\nStrengths: %s\nGaps: %s\nStyle: %s\nPrefs: %s",
		userName,
		strings.Join(data.LearningInsights.Strengths, ", "),
		strings.Join(data.LearningInsights.KnowledgeGaps, ", "),
		data.UserProfile.LearningStyle,
		data.UserProfile.CommunicationPreference,
	)
	metadata := map[string]interface{}{
		"user_id":   userEmail,
		"type":      rag.TypeUserProfile,
		"strengths": data.LearningInsights.Strengths,
		"gaps":      data.LearningInsights.KnowledgeGaps,
	}
	title := fmt.Sprintf("🧠 %s's Portfolio", userName)
	if _, err := s.store.AddDocument(ctx, content, metadata, title, ""); err != nil {
		s.logger.Warn("memory", "profile snapshot write failed", map[string]interface{}{
			"user":  userEmail,
			"error": err.Error(),
		})
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// displayName turns "jane.doe@uni.edu" into "Jane Doe".
func displayName(email string) string {
	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}
	words := strings.Split(strings.ReplaceAll(local, ".", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
