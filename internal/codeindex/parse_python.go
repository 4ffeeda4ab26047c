package codeindex

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/braind/internal/memorystore"
)

// defRe matches a (possibly async) top-level or nested function or
// class definition line, capturing its leading indentation, the
// async/def/class keyword, and the name. Go carries no Python grammar
// in its stack (no AST/parser library appears anywhere in the pack),
// so this is an indentation-tracking scanner standing in for Python's
// ast module: good enough to recover function/class boundaries from
// well-formed source, degrading to line-window chunking when it isn't.
var defRe = regexp.MustCompile(`^(\s*)(async\s+def|def|class)\s+(\w+)`)

// parsePython extracts one chunk per top-level or nested function or
// class. A file this scanner can't make sense of (no defs found at all)
// falls through to line windows instead of failing the whole file.
func parsePython(content string) ([]chunk, error) {
	lines := strings.Split(content, "\n")

	var chunks []chunk
	for i, line := range lines {
		m := defRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		indent := len(m[1])
		keyword := m[2]
		name := m[3]

		end := findBlockEnd(lines, i, indent)
		text := strings.Join(lines[i:end], "\n")
		docstring := extractDocstring(lines, i+1, end)

		if strings.HasPrefix(keyword, "async") {
			chunks = append(chunks, chunk{
				Text: text,
				Metadata: memorystore.CodeChunkMetadata{
					FunctionName: name,
					LineStart:    i + 1,
					LineEnd:      end,
					Docstring:    docstring,
					IsAsync:      true,
				},
			})
		} else if keyword == "def" {
			chunks = append(chunks, chunk{
				Text: text,
				Metadata: memorystore.CodeChunkMetadata{
					FunctionName: name,
					LineStart:    i + 1,
					LineEnd:      end,
					Docstring:    docstring,
				},
			})
		} else {
			chunks = append(chunks, chunk{
				Text: text,
				Metadata: memorystore.CodeChunkMetadata{
					ClassName: name,
					LineStart: i + 1,
					LineEnd:   end,
					Docstring: docstring,
				},
			})
		}
	}

	if len(chunks) == 0 {
		return parseLineWindows(content), nil
	}
	return chunks, nil
}

// findBlockEnd scans forward from the line after a def/class at the
// given indent, returning the exclusive end line index: the first
// subsequent non-blank line whose indentation is <= indent, or
// len(lines) if the block runs to the end of the file.
func findBlockEnd(lines []string, defLine, indent int) int {
	for i := defLine + 1; i < len(lines); i++ {
		trimmed := strings.TrimRight(lines[i], " \t")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		if lineIndent(lines[i]) <= indent {
			return i
		}
	}
	return len(lines)
}

func lineIndent(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 8
		} else {
			break
		}
	}
	return n
}

// extractDocstring looks for a triple-quoted string starting on the
// first non-blank line of [from, to) and returns its body.
func extractDocstring(lines []string, from, to int) string {
	i := from
	for i < to && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i >= to {
		return ""
	}
	trimmed := strings.TrimSpace(lines[i])
	for _, quote := range []string{`"""`, `'''`} {
		if !strings.HasPrefix(trimmed, quote) {
			continue
		}
		body := strings.TrimPrefix(trimmed, quote)
		if closeIdx := strings.Index(body, quote); closeIdx >= 0 {
			return strings.TrimSpace(body[:closeIdx])
		}
		var sb strings.Builder
		sb.WriteString(body)
		for j := i + 1; j < to; j++ {
			if closeIdx := strings.Index(lines[j], quote); closeIdx >= 0 {
				sb.WriteString("\n")
				sb.WriteString(lines[j][:closeIdx])
				return strings.TrimSpace(sb.String())
			}
			sb.WriteString("\n")
			sb.WriteString(lines[j])
		}
		return strings.TrimSpace(sb.String())
	}
	return ""
}
