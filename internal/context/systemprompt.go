package context

import (
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/braind/internal/projecttag"
)

const fallbackSystemPrompt = "You are a helpful, accurate, and context-aware AI assistant. " +
	"Your goal is to support the user by providing clear, concise, and reliable responses. " +
	"You should always be conversational, honest, direct, and thoughtful."

var numberedRuleRe = regexp.MustCompile(`^\s*\d+\.\s*(.+)$`)

// promptCache holds the base system prompt, read from disk at most once
// per process. A single-flight sync.Once guards the read so concurrent
// callers never race on the fallback/file decision.
type promptCache struct {
	once sync.Once
	path string
	val  string
}

func newPromptCache(path string) *promptCache {
	return &promptCache{path: path}
}

func (c *promptCache) get(logger *zap.Logger) string {
	c.once.Do(func() {
		if c.path == "" {
			c.val = fallbackSystemPrompt
			return
		}
		data, err := os.ReadFile(c.path)
		if err != nil {
			logger.Warn("base system prompt file unreadable, using fallback", zap.String("path", c.path), zap.Error(err))
			c.val = fallbackSystemPrompt
			return
		}
		trimmed := strings.TrimSpace(string(data))
		if trimmed == "" {
			logger.Warn("base system prompt file empty, using fallback", zap.String("path", c.path))
			c.val = fallbackSystemPrompt
			return
		}
		c.val = trimmed
	})
	return c.val
}

// BuildSystemPrompt composes the base system prompt plus, for a specific
// (non-general) project with a stored overview, a project declaration,
// the overview verbatim, and a numbered rules list. It never includes
// retrieval output; that is BuildContext's job.
func (a *Assembler) BuildSystemPrompt(ctx context.Context, rawProjectTag string) (string, error) {
	base := a.prompt.get(a.logger)

	project := projecttag.Normalize(rawProjectTag)
	if project == projecttag.General {
		return base, nil
	}

	knowledge, found, err := a.store.GetProjectKnowledge(ctx, project)
	if err != nil {
		a.logger.Warn("project knowledge lookup failed, using base prompt only", zap.Error(err))
		return base, nil
	}
	if !found || knowledge.Overview == "" {
		return base, nil
	}

	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\nIn this current conversation is tagged as project ")
	sb.WriteString(strings.ToUpper(project))
	sb.WriteString(".")
	sb.WriteString("\n\nHere's a general overview of the project ")
	sb.WriteString(strings.ToUpper(project))
	sb.WriteString(": ")
	sb.WriteString(knowledge.Overview)

	rules := parseRulesText(knowledge.Rules)
	if len(rules) > 0 {
		sb.WriteString("\n\n---")
		sb.WriteString("\n\n### Project ")
		sb.WriteString(strings.ToUpper(project))
		sb.WriteString(" rules:\n")
		for i, rule := range rules {
			sb.WriteString(strconv.Itoa(i + 1))
			sb.WriteString(". ")
			sb.WriteString(rule)
			sb.WriteString("\n")
		}
	}

	return sb.String(), nil
}

// parseRulesText splits raw rules text into individual rule strings. A
// numbered-list line ("1. Rule one") yields the text after the number;
// an unnumbered non-empty line is taken as a whole rule.
func parseRulesText(rulesText string) []string {
	rulesText = strings.TrimSpace(rulesText)
	if rulesText == "" {
		return nil
	}

	var rules []string
	for _, line := range strings.Split(rulesText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := numberedRuleRe.FindStringSubmatch(line); m != nil {
			rule := strings.TrimSpace(m[1])
			if rule != "" {
				rules = append(rules, rule)
			}
			continue
		}
		rules = append(rules, line)
	}
	return rules
}
