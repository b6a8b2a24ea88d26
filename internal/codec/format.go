package codec

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/conductor/pkg/models"
)

// --- json ---

func subtaskToMap(s models.Subtask) any {
	return map[string]any{
		"task_id":     s.ID,
		"title":       s.Title,
		"description": s.Description,
		"status":      string(s.Status),
	}
}

func taskResultToMap(r models.ExecutionResult) any {
	return map[string]any{
		"task_id": r.TaskID,
		"status":  string(r.Status),
		"output":  r.Output,
		"summary": r.Summary,
	}
}

// --- markdown ---

func subtaskToMarkdown(s models.Subtask) any {
	return fmt.Sprintf("### %s [ID: %s]\n**Description**: %s\n**Status**: %s\n",
		s.Title, s.ID, s.Description, s.Status)
}

func taskResultToMarkdown(r models.ExecutionResult) any {
	return fmt.Sprintf("### RESULT [ID: %s]\n**Status**: %s\n**Output**: %s\n**Summary**: %s\n---",
		r.TaskID, r.Status, r.Output, r.Summary)
}

// --- yaml ---

func subtaskToYAML(s models.Subtask) any {
	return yamlWrapper(s.ID, [][2]string{
		{"title", s.Title},
		{"description", s.Description},
		{"status", string(s.Status)},
	})
}

func taskResultToYAML(r models.ExecutionResult) any {
	return yamlWrapper(r.TaskID, [][2]string{
		{"status", string(r.Status)},
		{"output", r.Output},
		{"summary", r.Summary},
	})
}

// yamlWrapper renders {key: {fields...}} preserving field order. The
// wrapper key is force-quoted so numeric task ids stay strings; field
// values carry an explicit !!str tag so the encoder quotes anything that
// would otherwise resolve to a number, bool, or null.
func yamlWrapper(key string, fields [][2]string) string {
	inner := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fields {
		inner.Content = append(inner.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f[0]},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f[1]},
		)
	}
	root := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: key},
			inner,
		},
	}

	out, err := yaml.Marshal(root)
	if err != nil {
		// Only reachable with invalid UTF-8 in a field; fall back to an
		// empty mapping rather than panicking in a formatter.
		return "{}\n"
	}
	return string(out)
}

// --- xml ---

func subtaskToXML(s models.Subtask) any {
	return fmt.Sprintf("<task id=\"%s\">\n    <title>%s</title>\n    <description>%s</description>\n    <status>%s</status>\n</task>",
		xmlEscape(s.ID), xmlEscape(s.Title), xmlEscape(s.Description), xmlEscape(string(s.Status)))
}

func taskResultToXML(r models.ExecutionResult) any {
	return fmt.Sprintf("<task_result task_id=\"%s\">\n    <status>%s</status>\n    <output>%s</output>\n    <summary>%s</summary>\n</task_result>",
		xmlEscape(r.TaskID), xmlEscape(string(r.Status)), xmlEscape(r.Output), xmlEscape(r.Summary))
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

var xmlUnescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

func xmlEscape(s string) string {
	return xmlEscaper.Replace(s)
}

func xmlUnescape(s string) string {
	return xmlUnescaper.Replace(s)
}
