package retrieval

import (
	"testing"

	"github.com/Voldemort0731/fiwb-mvp/pkg/memorystore"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag"
)

func hasLeaf(f memorystore.Filter, key, value string, negate bool) bool {
	if f.Key == key && f.Value == value && f.Negate == negate {
		return true
	}
	for _, c := range f.And {
		if hasLeaf(c, key, value, negate) {
			return true
		}
	}
	for _, c := range f.Or {
		if hasLeaf(c, key, value, negate) {
			return true
		}
	}
	return false
}

func TestEveryPartitionFilterPinsUser(t *testing.T) {
	const email = "student@uni.edu"

	filters := map[string]*memorystore.Filter{
		"course":       courseFilter(email, ""),
		"memory":       memoryFilter(email),
		"workspace":    workspaceFilter(email),
		"sessionAsset": sessionAssetFilter(email),
		"profile":      profileFilter(email),
		"focused":      focusedFilter(email, "mat1"),
	}

	for name, f := range filters {
		if f == nil {
			t.Fatalf("%s filter is nil", name)
		}
		if !hasLeaf(*f, "user_id", email, false) {
			t.Errorf("%s filter does not pin user_id", name)
		}
	}
}

func TestPartitionTypeTagsDisjoint(t *testing.T) {
	const email = "student@uni.edu"

	if !hasLeaf(*courseFilter(email, ""), "type", rag.TypeEnhancedMemory, true) {
		t.Error("course filter must exclude synthesized memories")
	}
	if !hasLeaf(*memoryFilter(email), "type", rag.TypeEnhancedMemory, false) {
		t.Error("memory filter must require the enhanced_memory tag")
	}
	if !hasLeaf(*workspaceFilter(email), "type", rag.TypeAssistantKnowledge, false) {
		t.Error("workspace filter must require the assistant_knowledge tag")
	}
	if !hasLeaf(*sessionAssetFilter(email), "type", rag.TypeChatAttachment, false) {
		t.Error("session asset filter must require the chat_attachment tag")
	}
	if !hasLeaf(*profileFilter(email), "type", rag.TypeUserProfile, false) {
		t.Error("profile filter must require the user_profile tag")
	}
}

func TestCourseFilterScoping(t *testing.T) {
	const email = "student@uni.edu"

	if hasLeaf(*courseFilter(email, ""), "course_id", "", false) {
		t.Error("unscoped course filter must not carry a course_id leaf")
	}
	if !hasLeaf(*courseFilter(email, "cs101"), "course_id", "cs101", false) {
		t.Error("scoped course filter must pin course_id")
	}
}

func TestFocusedFilterIdShapes(t *testing.T) {
	const email = "student@uni.edu"
	const longID = "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms"

	tests := []struct {
		name    string
		scope   string
		want    []string // source_id OR branch values
		annLeaf string   // expected parent_announcement_id leaf, "" for none
	}{
		{
			name:  "plain coursework id",
			scope: "cw_1",
			want:  []string{"cw_1", rag.PrefixAnnAtt + "cw_1"},
		},
		{
			name:    "announcement id fans out to children",
			scope:   "ann_42",
			want:    []string{"ann_42", rag.PrefixAnnAtt + "ann_42"},
			annLeaf: "42",
		},
		{
			name:  "embedded drive token added as alternative",
			scope: "msg." + longID,
			want:  []string{"msg." + longID, rag.PrefixAnnAtt + "msg." + longID, longID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := focusedFilter(email, tt.scope)
			for _, v := range tt.want {
				if !hasLeaf(*f, "source_id", v, false) {
					t.Errorf("missing source_id=%q branch", v)
				}
			}
			if tt.annLeaf != "" && !hasLeaf(*f, "parent_announcement_id", tt.annLeaf, false) {
				t.Errorf("missing parent_announcement_id=%q branch", tt.annLeaf)
			}
			if tt.annLeaf == "" && hasLeaf(*f, "parent_announcement_id", rag.StripKnownPrefixes(tt.scope), false) {
				t.Error("non-announcement scope must not query parent_announcement_id")
			}
		})
	}
}
