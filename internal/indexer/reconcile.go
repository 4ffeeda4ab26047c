package indexer

import "github.com/fyrsmithlabs/braind/internal/projecttag"

// reconciliation is the outcome of applying the project-tag
// reconciliation rules run after organizer extraction.
type reconciliation struct {
	// Tag is the project tag the MemoryRecord (and possibly the
	// Session row) should end up with.
	Tag string
	// PromotedFromGeneral is true when the session's own tag was
	// "general" and got promoted to the LLM's suggestion; the caller
	// must also update the Session row in this case.
	PromotedFromGeneral bool
}

// reconcileProjectTag applies the project-tag reconciliation rules:
//
//   - A specific (non-general) session tag always wins, regardless of
//     what the LLM suggested.
//   - A "general" session tag stays "general" if preserveProject is
//     set, no matter what the LLM suggested.
//   - A "general" session tag is promoted to the LLM's suggestion if
//     preserveProject is not set and the suggestion is a valid,
//     specific tag.
//   - Any other LLM suggestion (invalid, or "general" itself) leaves
//     the session tag as "general".
//
// sessionTag is assumed already normalized (projecttag.Normalize).
// llmProject is used exactly as returned by the LLM, unnormalized: the
// original system validates it against the closed set verbatim rather
// than case-folding it first.
func reconcileProjectTag(sessionTag, llmProject string, preserveProject bool) reconciliation {
	if projecttag.IsSpecific(sessionTag) {
		return reconciliation{Tag: sessionTag}
	}

	// sessionTag == general from here on.
	if preserveProject {
		return reconciliation{Tag: projecttag.General}
	}

	if llmProject != projecttag.General && projecttag.IsValid(llmProject) {
		return reconciliation{Tag: llmProject, PromotedFromGeneral: true}
	}

	return reconciliation{Tag: projecttag.General}
}
