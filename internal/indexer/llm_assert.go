package indexer

import "github.com/fyrsmithlabs/braind/internal/llmclient"

var _ LLM = (*llmclient.Client)(nil)
