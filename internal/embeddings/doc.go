// Package embeddings implements the Embedding Provider (C1): producing a
// fixed-dimension float vector for a text input, with an OpenAI-backed
// implementation and a mock implementation for development.
package embeddings
