// Package indexer implements the session indexer: it turns a
// completed session into a structured MemoryRecord via a local
// organizer LLM, including tolerant JSON extraction from noisy output,
// project-tag reconciliation, upsert into the memory store, and
// embedding generation for projects that use vector retrieval.
package indexer
