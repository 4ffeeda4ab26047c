package codeindex

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/braind/internal/memorystore"
)

const lineWindowSize = 100

// parseFile routes to the language-specific chunker.
func parseFile(path, language string) ([]chunk, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch language {
	case "python":
		return parsePython(string(content))
	case "bash":
		return parseBash(string(content)), nil
	case "json":
		return parseJSON(string(content)), nil
	case "yaml", "toml", "config":
		return parseWholeFile(string(content)), nil
	default:
		return parseLineWindows(string(content)), nil
	}
}

// parseWholeFile emits a single chunk spanning the entire file, used
// for config languages that are not worth parsing more finely (spec
// §4.5: "coarse but honest").
func parseWholeFile(content string) []chunk {
	lines := strings.Split(content, "\n")
	return []chunk{{
		Text: content,
		Metadata: memorystore.CodeChunkMetadata{
			LineStart: 1,
			LineEnd:   len(lines),
		},
	}}
}

// parseLineWindows is the universal fallback: fixed-size, non-
// overlapping windows of lineWindowSize lines.
func parseLineWindows(content string) []chunk {
	lines := strings.Split(content, "\n")
	var chunks []chunk
	for i := 0; i < len(lines); i += lineWindowSize {
		end := i + lineWindowSize
		if end > len(lines) {
			end = len(lines)
		}
		chunks = append(chunks, chunk{
			Text: strings.Join(lines[i:end], "\n"),
			Metadata: memorystore.CodeChunkMetadata{
				LineStart:  i + 1,
				LineEnd:    end,
				ChunkIndex: i / lineWindowSize,
			},
		})
	}
	return chunks
}

// parseJSON emits one chunk per top-level key, falling back to a
// whole-file chunk on decode failure.
func parseJSON(content string) []chunk {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return parseWholeFile(content)
	}

	lineCount := len(strings.Split(content, "\n"))
	chunks := make([]chunk, 0, len(raw))
	for key, value := range raw {
		section := map[string]json.RawMessage{key: value}
		text, err := json.MarshalIndent(section, "", "  ")
		if err != nil {
			continue
		}
		chunks = append(chunks, chunk{
			Text: string(text),
			Metadata: memorystore.CodeChunkMetadata{
				Section:   key,
				LineStart: 1,
				LineEnd:   lineCount,
			},
		})
	}
	if len(chunks) == 0 {
		return parseWholeFile(content)
	}
	return chunks
}

var bashFuncRe = regexp.MustCompile(`^\s*(?:function\s+)?(\w+)\s*\(\)\s*\{?`)

// parseBash detects function definitions by the name() { / function
// name { pattern and emits one chunk per function, tracking the
// function body until a closing brace on its own line. If no functions
// are found, the whole file becomes one chunk.
func parseBash(content string) []chunk {
	lines := strings.Split(content, "\n")
	var chunks []chunk

	var currentName string
	var start int
	var body []string

	flush := func(endLine int) {
		chunks = append(chunks, chunk{
			Text: strings.Join(body, "\n"),
			Metadata: memorystore.CodeChunkMetadata{
				FunctionName: currentName,
				LineStart:    start,
				LineEnd:      endLine,
			},
		})
		currentName = ""
		body = nil
	}

	for i, line := range lines {
		lineNo := i + 1
		if m := bashFuncRe.FindStringSubmatch(line); m != nil {
			if currentName != "" && len(body) > 0 {
				flush(lineNo - 1)
			}
			currentName = m[1]
			start = lineNo
			body = []string{line}
			continue
		}
		if currentName != "" {
			body = append(body, line)
			if strings.TrimSpace(line) == "}" {
				flush(lineNo)
			}
		}
	}
	if currentName != "" && len(body) > 0 {
		flush(len(lines))
	}

	if len(chunks) == 0 {
		chunks = append(chunks, chunk{
			Text: content,
			Metadata: memorystore.CodeChunkMetadata{
				LineStart: 1,
				LineEnd:   len(lines),
			},
		})
	}
	return chunks
}
