// Package codeindex implements the code indexer: it walks a
// repository tree, detects each file's language, chunks it at
// function/class granularity where a language supports that (falling
// back to line windows otherwise), embeds each chunk with a contextual
// header, and persists the result with per-chunk metadata and
// production-target tags. Re-indexing an unchanged commit is a no-op.
package codeindex
