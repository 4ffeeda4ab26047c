package codeindex

import (
	"strings"

	"github.com/fyrsmithlabs/braind/internal/memorystore"
)

// embeddingText builds the contextual text a chunk is embedded with:
// a header composed from whichever of file path, function/class name,
// and docstring are present, joined to the chunk body by a blank line.
func embeddingText(filePath string, meta memorystore.CodeChunkMetadata, chunkText string) string {
	var header []string
	if filePath != "" {
		header = append(header, "File: "+filePath)
	}
	if meta.FunctionName != "" {
		header = append(header, "Function: "+meta.FunctionName)
	}
	if meta.ClassName != "" {
		header = append(header, "Class: "+meta.ClassName)
	}
	if meta.Docstring != "" {
		header = append(header, "Description: "+meta.Docstring)
	}

	if len(header) == 0 {
		return chunkText
	}
	return strings.Join(header, "\n") + "\n\n" + chunkText
}
