package retrieval

import (
	"github.com/Voldemort0731/fiwb-mvp/pkg/memorystore"
	"github.com/Voldemort0731/fiwb-mvp/pkg/rag"
)

// Every partition predicate pins the requesting user. Type tags keep the
// partitions disjoint; the filter is the only isolation mechanism, so no
// partition may ever be queried without one.

func courseFilter(userEmail, courseScope string) *memorystore.Filter {
	conds := []memorystore.Filter{
		memorystore.Cond("user_id", userEmail),
		memorystore.Not("type", rag.TypeEnhancedMemory),
	}
	if courseScope != "" {
		conds = append(conds, memorystore.Cond("course_id", courseScope))
	}
	f := memorystore.All(conds...)
	return &f
}

func memoryFilter(userEmail string) *memorystore.Filter {
	f := memorystore.All(
		memorystore.Cond("user_id", userEmail),
		memorystore.Cond("type", rag.TypeEnhancedMemory),
	)
	return &f
}

func workspaceFilter(userEmail string) *memorystore.Filter {
	f := memorystore.All(
		memorystore.Cond("user_id", userEmail),
		memorystore.Cond("type", rag.TypeAssistantKnowledge),
	)
	return &f
}

func sessionAssetFilter(userEmail string) *memorystore.Filter {
	f := memorystore.All(
		memorystore.Cond("user_id", userEmail),
		memorystore.Cond("type", rag.TypeChatAttachment),
	)
	return &f
}

func profileFilter(userEmail string) *memorystore.Filter {
	f := memorystore.All(
		memorystore.Cond("user_id", userEmail),
		memorystore.Cond("type", rag.TypeUserProfile),
	)
	return &f
}

// focusedFilter targets one specific material through every id shape the
// sync may have stored it under.
func focusedFilter(userEmail, materialScope string) *memorystore.Filter {
	idConds := []memorystore.Filter{
		memorystore.Cond("source_id", materialScope),
		memorystore.Cond("source_id", rag.PrefixAnnAtt+materialScope),
	}
	if token := rag.ExtractLongToken(materialScope); token != "" && token != materialScope {
		idConds = append(idConds, memorystore.Cond("source_id", token))
	}
	if rag.IsAnnouncementDerived(materialScope) {
		idConds = append(idConds, memorystore.Cond("parent_announcement_id", rag.StripKnownPrefixes(materialScope)))
	}

	f := memorystore.All(
		memorystore.Cond("user_id", userEmail),
		memorystore.Any(idConds...),
	)
	return &f
}
