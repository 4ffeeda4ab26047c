package indexer

import (
	"encoding/json"

	"github.com/fyrsmithlabs/braind/internal/jsonextract"
	"github.com/fyrsmithlabs/braind/internal/memorystore"
)

// indexedPayload is the Go shape of the indexer-prompt schema the
// organizer LLM is asked to produce.
type indexedPayload struct {
	Title           string                  `json:"title"`
	Project         string                  `json:"project"`
	Tags            []string                `json:"tags"`
	SummaryShort    string                  `json:"summary_short"`
	SummaryDetailed string                  `json:"summary_detailed"`
	KeyEntities     memorystore.KeyEntities `json:"key_entities"`
	KeyTopics       []string                `json:"key_topics"`
	MemorySnippet   string                  `json:"memory_snippet"`
}

// parsePayload extracts a JSON object from the LLM's raw response and
// unmarshals it into an indexedPayload, filling any missing required
// field with a typed default.
func parsePayload(raw string) (indexedPayload, error) {
	jsonText, err := jsonextract.Extract(raw)
	if err != nil {
		return indexedPayload{}, err
	}

	var p indexedPayload
	if err := json.Unmarshal([]byte(jsonText), &p); err != nil {
		return indexedPayload{}, err
	}
	p.applyDefaults()
	return p, nil
}

// reconstructPayload is the markdown-fallback reconstructor's path into
// an indexedPayload, used when parsePayload fails entirely. It never
// fails: any field it cannot recognize falls back to session metadata
// (title, project) or, failing that, to applyDefaults's placeholders.
func reconstructPayload(raw, sessionTitle, sessionProject string) indexedPayload {
	fields := jsonextract.ReconstructFromMarkdown(raw)

	var p indexedPayload
	p.Title = fields["title"]
	if p.Title == "" {
		p.Title = sessionTitle
	}
	p.Project = fields["project"]
	if p.Project == "" {
		p.Project = sessionProject
	}
	p.SummaryShort = fields["summary_short"]
	p.SummaryDetailed = fields["summary_detailed"]
	p.MemorySnippet = fields["memory_snippet"]
	if v, ok := fields["tags"]; ok {
		p.Tags = jsonextract.ParseList(v)
	}
	if v, ok := fields["key_topics"]; ok {
		p.KeyTopics = jsonextract.ParseList(v)
	}
	if v, ok := fields["people"]; ok {
		p.KeyEntities.People = jsonextract.ParseList(v)
	}
	if v, ok := fields["domains"]; ok {
		p.KeyEntities.Domains = jsonextract.ParseList(v)
	}
	if v, ok := fields["assets"]; ok {
		p.KeyEntities.Assets = jsonextract.ParseList(v)
	}
	p.applyDefaults()
	return p
}

// applyDefaults fills every required field left empty (or nil, for
// slices) with a typed default: an empty list for list fields, a
// "Missing {field}" placeholder for string fields. Project is left
// untouched — reconciliation treats an empty or invalid value the same
// as any other LLM-proposed tag outside the closed set.
func (p *indexedPayload) applyDefaults() {
	if p.Title == "" {
		p.Title = "Missing title"
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.SummaryShort == "" {
		p.SummaryShort = "Missing summary_short"
	}
	if p.SummaryDetailed == "" {
		p.SummaryDetailed = "Missing summary_detailed"
	}
	if p.KeyTopics == nil {
		p.KeyTopics = []string{}
	}
	if p.KeyEntities.People == nil {
		p.KeyEntities.People = []string{}
	}
	if p.KeyEntities.Domains == nil {
		p.KeyEntities.Domains = []string{}
	}
	if p.KeyEntities.Assets == nil {
		p.KeyEntities.Assets = []string{}
	}
	if p.MemorySnippet == "" {
		p.MemorySnippet = "Missing memory_snippet"
	}
}
