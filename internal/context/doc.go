// Package context implements the Context Assembler: composing the
// system-role material injected into the next language-model call from
// stable project knowledge, a project-specific retrieval strategy, and
// optional external notes.
//
// It exposes two independent entry points: BuildSystemPrompt, which
// composes the base system prompt plus a project-specific extension, and
// BuildContext, which runs the RAG assembly path and returns a
// prompt-ready context block with source notes.
package context
