package codeindex

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	"node_modules": true,
	".idea":        true,
	".vscode":      true,
}

var extensionLanguage = map[string]string{
	".py":   "python",
	".sh":   "bash",
	".bash": "bash",
	".zsh":  "bash",
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
	".toml": "toml",
	".conf": "config",
	".cfg":  "config",
}

// detectLanguage returns the language tag for path, or "" if it is not
// a recognized code/config file. Extension match is tried first; a
// shebang-line fallback covers extensionless scripts.
func detectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extensionLanguage[ext]; ok {
		return lang
	}
	return detectShebangLanguage(path)
}

func detectShebangLanguage(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return ""
	}
	firstLine := strings.TrimSpace(scanner.Text())
	if !strings.HasPrefix(firstLine, "#!") {
		return ""
	}
	switch {
	case strings.Contains(firstLine, "bash") || strings.Contains(firstLine, "sh"):
		return "bash"
	case strings.Contains(firstLine, "python"):
		return "python"
	}
	return ""
}
