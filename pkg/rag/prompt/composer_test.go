package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Voldemort0731/fiwb-mvp/internal/constant"
	"github.com/Voldemort0731/fiwb-mvp/pkg/llm"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag"
)

func courseChunk(content, title, course, sourceID string) rag.RetrievedChunk {
	return rag.RetrievedChunk{
		Content: content,
		Meta: rag.ChunkMeta{
			Title:      title,
			CourseName: course,
			SourceID:   sourceID,
			Type:       "material",
		},
	}
}

func TestComposeShape(t *testing.T) {
	c := NewComposer()
	messages := c.Compose(ComposeInput{
		Query:  "explain quicksort",
		Intent: rag.IntentAcademicQuestion,
		History: []rag.Turn{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	})

	if len(messages) != 4 {
		t.Fatalf("got %d messages, want system + 2 history + user", len(messages))
	}
	if messages[0].Role != llm.RoleSystem {
		t.Errorf("first message role = %q", messages[0].Role)
	}
	if messages[1].Role != llm.RoleUser || messages[2].Role != llm.RoleAssistant {
		t.Error("history roles not preserved")
	}
	last := messages[len(messages)-1]
	if last.Role != llm.RoleUser {
		t.Errorf("last message role = %q", last.Role)
	}
	if got := last.Parts[len(last.Parts)-1]; got.Type != "text" || got.Text != "explain quicksort" {
		t.Errorf("final part = %+v, want the literal query", got)
	}
}

func TestComposePersonaSelection(t *testing.T) {
	c := NewComposer()

	tests := []struct {
		name     string
		intent   rag.Intent
		contains string
	}{
		{name: "academic uses socratic persona", intent: rag.IntentAcademicQuestion, contains: socraticMarker()},
		{name: "deadline uses socratic persona", intent: rag.IntentDeadlineLookup, contains: socraticMarker()},
		{name: "general chat uses companion persona", intent: rag.IntentGeneralChat, contains: chatMarker()},
		{name: "notebook uses analysis persona", intent: rag.IntentNotebookAnalysis, contains: strings.TrimSpace(constant.NotebookAnalysisSystemPrompt)[:40]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages := c.Compose(ComposeInput{Query: "q", Intent: tt.intent})
			system := messages[0].Content
			if !strings.Contains(system, tt.contains) {
				t.Errorf("system prompt does not carry the expected persona:\n%s", system)
			}
		})
	}
}

func socraticMarker() string {
	// The persona templates share no format verbs in their first line, so
	// the line itself identifies the template.
	return firstLine(constant.SocraticSystemPromptTemplate)
}

func chatMarker() string {
	return firstLine(constant.GeneralChatSystemPromptTemplate)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i > 0 {
		return s[:i]
	}
	return s
}

func TestComposeIsPure(t *testing.T) {
	c := NewComposer()
	in := ComposeInput{
		Query:  "what is due this week?",
		Intent: rag.IntentDeadlineLookup,
		Retrieval: rag.Result{
			CourseContext: []rag.RetrievedChunk{courseChunk("hw due friday", "HW3", "CS101", "m1")},
			Memory:        []rag.RetrievedChunk{{Content: "struggles with pointers"}},
		},
	}

	a := c.Compose(in)
	b := c.Compose(in)
	if len(a) != len(b) {
		t.Fatal("repeated composition changed message count")
	}
	for i := range a {
		if a[i].Content != b[i].Content || a[i].Role != b[i].Role {
			t.Fatalf("message %d differs between identical compositions", i)
		}
	}
}

func TestComposeNotebookVaultRidesInUserTurn(t *testing.T) {
	c := NewComposer()
	messages := c.Compose(ComposeInput{
		Query:  "summarize this document",
		Intent: rag.IntentNotebookAnalysis,
		Retrieval: rag.Result{
			CourseContext: []rag.RetrievedChunk{courseChunk("kernel scheduling notes", "OS Notes", "CS301", "m1")},
		},
	})

	if strings.Contains(messages[0].Content, "kernel scheduling notes") {
		t.Error("focused analysis must not place the vault in the system turn")
	}
	last := messages[len(messages)-1]
	if len(last.Parts) != 2 {
		t.Fatalf("got %d user parts, want vault + query", len(last.Parts))
	}
	if !strings.Contains(last.Parts[0].Text, "ACADEMIC VAULT") || !strings.Contains(last.Parts[0].Text, "kernel scheduling notes") {
		t.Errorf("vault part = %q", last.Parts[0].Text)
	}
}

func TestComposeImageAttachment(t *testing.T) {
	c := NewComposer()
	messages := c.Compose(ComposeInput{
		Query:        "what is on this slide?",
		Intent:       rag.IntentAcademicQuestion,
		ImageDataURL: "data:image/png;base64,AAAA",
	})

	last := messages[len(messages)-1]
	if len(last.Parts) != 2 {
		t.Fatalf("got %d parts, want image + query", len(last.Parts))
	}
	if last.Parts[0].Type != "image_url" {
		t.Errorf("first part = %+v", last.Parts[0])
	}
}

func TestComposeBudgetsClipSections(t *testing.T) {
	c := NewComposer()
	long := strings.Repeat("x", 500)
	messages := c.Compose(ComposeInput{
		Query:  "q",
		Intent: rag.IntentAcademicQuestion,
		Retrieval: rag.Result{
			CourseContext: []rag.RetrievedChunk{courseChunk(long, "Big Doc", "CS101", "m1")},
		},
		Budgets: Budgets{KnowledgeBase: 100, Workspace: 100, Memory: 100, Profile: 100, Attachment: 100},
	})

	system := messages[0].Content
	if !strings.Contains(system, "[TRUNCATED]") {
		t.Error("oversized knowledge base was not clipped")
	}
	if strings.Contains(system, long) {
		t.Error("full oversized content leaked into the prompt")
	}
}

func TestComposeBudgetsClipOnRuneBoundary(t *testing.T) {
	c := NewComposer()
	// One ascii byte then two-byte runes, so a byte-count cut lands mid-rune.
	long := "x" + strings.Repeat("é", 300)
	messages := c.Compose(ComposeInput{
		Query:  "q",
		Intent: rag.IntentAcademicQuestion,
		Retrieval: rag.Result{
			CourseContext: []rag.RetrievedChunk{courseChunk(long, "Big Doc", "CS101", "m1")},
		},
		Budgets: Budgets{KnowledgeBase: 100, Workspace: 100, Memory: 100, Profile: 100, Attachment: 100},
	})

	system := messages[0].Content
	if !strings.Contains(system, "[TRUNCATED]") {
		t.Error("oversized knowledge base was not clipped")
	}
	if !utf8.ValidString(system) {
		t.Error("clipped prompt contains invalid UTF-8")
	}
}

func TestComposeEmptyRetrievalPlaceholders(t *testing.T) {
	c := NewComposer()
	messages := c.Compose(ComposeInput{Query: "q", Intent: rag.IntentAcademicQuestion})
	system := messages[0].Content

	for _, placeholder := range []string{
		constant.EmptyKnowledgeBase,
		constant.EmptyWorkspace,
		constant.EmptyMemoryVault,
		constant.EmptyIdentity,
	} {
		if !strings.Contains(system, placeholder) {
			t.Errorf("system prompt missing placeholder %q", placeholder)
		}
	}
}

func TestComposeHistoryBounded(t *testing.T) {
	c := NewComposer()
	var history []rag.Turn
	for i := 0; i < 30; i++ {
		history = append(history, rag.Turn{Role: "user", Content: "turn"})
	}

	messages := c.Compose(ComposeInput{Query: "q", Intent: rag.IntentGeneralChat, History: history})
	// system + 10 most recent turns + final user message
	if len(messages) != 12 {
		t.Errorf("got %d messages, want 12", len(messages))
	}
}

func TestComposeAttachmentLeadsAcademicContext(t *testing.T) {
	c := NewComposer()
	messages := c.Compose(ComposeInput{
		Query:          "q",
		Intent:         rag.IntentAcademicQuestion,
		AttachmentText: "pasted homework text",
		Retrieval: rag.Result{
			CourseContext: []rag.RetrievedChunk{courseChunk("retrieved later", "Doc", "CS101", "m1")},
		},
	})

	system := messages[0].Content
	primary := strings.Index(system, "PRIMARY SOURCE")
	retrieved := strings.Index(system, "retrieved later")
	if primary == -1 || retrieved == -1 || primary > retrieved {
		t.Errorf("inline attachment must render ahead of retrieved documents (primary=%d retrieved=%d)", primary, retrieved)
	}
}
