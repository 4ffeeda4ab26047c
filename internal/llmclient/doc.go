// Package llmclient is a thin HTTP client for the local organizer LLM
// (an Ollama-compatible endpoint): a liveness probe with a short timeout,
// and a generate call with a long timeout tuned for slow first-token
// organizer models.
package llmclient
