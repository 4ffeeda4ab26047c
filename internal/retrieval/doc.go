// Package retrieval implements the per-project retrieval strategies:
// DAAS single-dream/pattern dispatch, code-chunk vector search,
// and a generic keyword-scored fallback. Every strategy tolerates an
// empty query and a store returning no candidates; none of them ever
// return a Go error for "nothing found" — only for a genuine precondition
// failure the caller cannot recover from on its own.
package retrieval
