package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Voldemort0731/fiwb-mvp/internal/constant"
	"github.com/Voldemort0731/fiwb-mvp/pkg/llm"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag"
)

const maxHistoryTurns = 10

// Budgets caps each rendered prompt section, in characters. The original
// call sites scattered ad hoc truncation constants; they are centralized
// here and fed from configuration.
type Budgets struct {
	KnowledgeBase int
	Workspace     int
	Memory        int
	Profile       int
	Attachment    int
}

func DefaultBudgets() Budgets {
	return Budgets{
		KnowledgeBase: 24000,
		Workspace:     8000,
		Memory:        4000,
		Profile:       2000,
		Attachment:    16000,
	}
}

// ComposeInput carries everything one prompt assembly needs.
type ComposeInput struct {
	Query          string
	Retrieval      rag.Result
	History        []rag.Turn
	AttachmentText string
	ImageDataURL   string
	Intent         rag.Intent
	Budgets        Budgets
}

// Composer assembles the multi-message prompt. It is a pure function of its
// input: no I/O, no model calls.
type Composer struct{}

func NewComposer() *Composer {
	return &Composer{}
}

// Compose builds [system, ...history, user] with exactly one system message
// chosen by intent. The final message always ends with the literal query.
func (c *Composer) Compose(in ComposeInput) []llm.Message {
	budgets := in.Budgets
	if budgets.KnowledgeBase == 0 {
		budgets = DefaultBudgets()
	}
	in.Budgets = budgets

	knowledgeBase := clip(c.renderAcademicContext(in), budgets.KnowledgeBase)
	workspace := clip(c.renderWorkspace(in.Retrieval.WorkspaceKnowledge, in.Retrieval.SessionAssets), budgets.Workspace)
	memoryVault := clip(renderBullets(in.Retrieval.Memory, constant.EmptyMemoryVault), budgets.Memory)
	identity := clip(renderBullets(in.Retrieval.Profile, constant.EmptyIdentity), budgets.Profile)

	var system string
	switch in.Intent {
	case rag.IntentGeneralChat:
		system = fmt.Sprintf(constant.GeneralChatSystemPromptTemplate, workspace, knowledgeBase, identity, memoryVault)
	case rag.IntentNotebookAnalysis:
		// The vault goes into the user turn for this persona; see below.
		system = constant.NotebookAnalysisSystemPrompt
	default:
		system = fmt.Sprintf(constant.SocraticSystemPromptTemplate, knowledgeBase, workspace, identity, memoryVault)
	}

	messages := []llm.Message{
		llm.TextMessage(llm.RoleSystem, strings.TrimSpace(system)),
	}

	history := in.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	for _, turn := range history {
		role := llm.RoleAssistant
		if turn.Role == llm.RoleUser {
			role = llm.RoleUser
		}
		messages = append(messages, llm.TextMessage(role, turn.Content))
	}

	// Final user message. For focused analysis the academic context rides in
	// the user turn rather than the system turn; user-turn placement grounds
	// the target model family measurably better and is part of the contract.
	var parts []llm.Part
	if in.Intent == rag.IntentNotebookAnalysis {
		vault := "# [CRITICAL] ACADEMIC VAULT:\n" + knowledgeBase
		parts = append(parts, llm.Part{Type: "text", Text: vault})
	}
	if in.ImageDataURL != "" {
		parts = append(parts, llm.Part{Type: "image_url", ImageURL: in.ImageDataURL})
	}
	parts = append(parts, llm.Part{Type: "text", Text: in.Query})

	messages = append(messages, llm.Message{Role: llm.RoleUser, Parts: parts})
	return messages
}

type docGroup struct {
	title    string
	course   string
	category string
	link     string
	chunks   []string
}

// renderAcademicContext groups course chunks by document and renders one
// block per document. An inline attachment becomes the highest-priority
// group ahead of all retrieved ones.
func (c *Composer) renderAcademicContext(in ComposeInput) string {
	var order []string
	groups := map[string]*docGroup{}

	if in.AttachmentText != "" {
		key := "CURRENT_DOCUMENT"
		groups[key] = &docGroup{
			title:    "Currently Viewed Document",
			course:   "Analysis Workspace",
			category: "PRIMARY SOURCE",
			chunks:   []string{clip(in.AttachmentText, in.Budgets.Attachment)},
		}
		order = append(order, key)
	}

	for _, chunk := range in.Retrieval.CourseContext {
		meta := chunk.Meta

		baseTitle := meta.Title
		if baseTitle == "" {
			baseTitle = meta.FileName
		}
		if baseTitle == "" {
			baseTitle = "Institutional Document"
		}
		courseName := meta.CourseName
		if courseName == "" {
			courseName = meta.CourseID
		}
		uniqueName := baseTitle
		if courseName != "" {
			uniqueName = fmt.Sprintf("%s [%s]", baseTitle, courseName)
		}

		key := meta.SourceID
		if key == "" {
			key = meta.FileName
		}
		if key == "" {
			key = uniqueName
		}

		group, ok := groups[key]
		if !ok {
			category := strings.ToUpper(meta.Type)
			if category == "" {
				category = "INSTITUTIONAL MATERIAL"
			}
			course := courseName
			if course == "" {
				course = "General Workspace"
			}
			group = &docGroup{
				title:    uniqueName,
				course:   course,
				category: category,
				link:     meta.BestLink(),
			}
			groups[key] = group
			order = append(order, key)
		}
		group.chunks = append(group.chunks, chunk.Content)
	}

	if len(order) == 0 {
		return constant.EmptyKnowledgeBase
	}

	blocks := make([]string, 0, len(order))
	for _, key := range order {
		g := groups[key]
		var b strings.Builder
		fmt.Fprintf(&b, "[%s | %s]\n", g.category, g.course)
		fmt.Fprintf(&b, "DOCUMENT: %s\n", g.title)
		if g.link != "" {
			fmt.Fprintf(&b, "LINK: %s\n", g.link)
		}
		fmt.Fprintf(&b, "CONTENT: %s", strings.Join(g.chunks, "\n\n"))
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// renderWorkspace groups workspace knowledge by subject and appends session
// assets, one block per stored file.
func (c *Composer) renderWorkspace(workspace, sessionAssets []rag.RetrievedChunk) string {
	var order []string
	groups := map[string]*docGroup{}

	for _, chunk := range workspace {
		meta := chunk.Meta
		key := meta.DocumentID
		if key == "" {
			key = meta.Subject
		}
		if key == "" {
			key = meta.Title
		}

		group, ok := groups[key]
		if !ok {
			label := strings.ToUpper(meta.Category)
			if label == "" {
				label = "INTEL"
			}
			subject := meta.Subject
			if subject == "" {
				subject = meta.Title
			}
			if subject == "" {
				subject = "Workspace Item"
			}
			group = &docGroup{
				title:    subject,
				category: label,
			}
			groups[key] = group
			order = append(order, key)
		}
		group.chunks = append(group.chunks, chunk.Content)
	}

	var blocks []string
	for _, key := range order {
		g := groups[key]
		blocks = append(blocks, fmt.Sprintf("[%s | TITLE: %s]\nCONTEXT: %s", g.category, g.title, strings.Join(g.chunks, "\n")))
	}

	for _, asset := range sessionAssets {
		fname := asset.Meta.FileName
		if fname == "" {
			fname = "Previous Asset"
		}
		blocks = append(blocks, fmt.Sprintf("[PAST ASSET | %s]\nCONTENT: %s", fname, asset.Content))
	}

	if len(blocks) == 0 {
		return constant.EmptyWorkspace
	}
	return strings.Join(blocks, "\n\n")
}

func renderBullets(chunks []rag.RetrievedChunk, placeholder string) string {
	if len(chunks) == 0 {
		return placeholder
	}
	lines := make([]string, 0, len(chunks))
	for _, c := range chunks {
		lines = append(lines, "• "+c.Content)
	}
	return strings.Join(lines, "\n")
}

func clip(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	// back off to a rune boundary so the cut never splits a multi-byte char
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "\n[TRUNCATED]"
}
