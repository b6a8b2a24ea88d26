package codec

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/conductor/pkg/models"
)

// parseTaskResultJSON accepts strict JSON first, then runs the input
// through jsonrepair to recover near-JSON worker output: single-quoted
// keys, Python-literal dicts, trailing commas, truncated braces. The top
// level must decode to an object satisfying the ExecutionResult schema.
func parseTaskResultJSON(raw string) *models.ExecutionResult {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil
		}
		if err := json.Unmarshal([]byte(repaired), &decoded); err != nil {
			return nil
		}
	}
	if decoded == nil {
		return nil
	}

	res, err := models.ExecutionResultFromMap(decoded)
	if err != nil {
		return nil
	}
	return res
}

// parseTaskResultYAML accepts either the single-key wrapper form
// ({task_id: {status, output, summary}}) or a flat mapping carrying a
// task_id field. Scalar or sequence top levels are rejected.
func parseTaskResultYAML(raw string) *models.ExecutionResult {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var decoded any
	if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil
	}

	top, ok := normalizeMap(decoded)
	if !ok {
		return nil
	}

	// Flat mapping with an explicit task_id field.
	if _, present := top["task_id"]; present {
		res, err := models.ExecutionResultFromMap(top)
		if err != nil {
			return nil
		}
		return res
	}

	// Single-key wrapper: the key is the task id unless the inner mapping
	// carries its own.
	if len(top) != 1 {
		return nil
	}
	for key, v := range top {
		inner, ok := normalizeMap(v)
		if !ok {
			return nil
		}
		if _, present := inner["task_id"]; !present {
			inner["task_id"] = key
		}
		res, err := models.ExecutionResultFromMap(inner)
		if err != nil {
			return nil
		}
		return res
	}
	return nil
}

// normalizeMap converts a decoded YAML value into map[string]any,
// stringifying non-string keys (YAML reads an unquoted 3 as an int).
func normalizeMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

var (
	markdownIDPattern    = regexp.MustCompile(`\[ID:\s*([^\]]+)\]`)
	markdownFieldPattern = regexp.MustCompile(`(?i)^\s*(?:\*\*)?(status|output|summary)(?:\*\*)?\s*:\s*(.*)$`)
)

// parseTaskResultMarkdown extracts the task id from a bracketed [ID: ...]
// marker and scans line by line for status/output/summary field headers.
// Output and summary accumulate lines until the next header or a lone
// "---" end marker; status takes only the first line of its value.
func parseTaskResultMarkdown(raw string) *models.ExecutionResult {
	idMatch := markdownIDPattern.FindStringSubmatch(raw)
	if idMatch == nil {
		return nil
	}
	taskID := strings.TrimSpace(idMatch[1])

	fields := make(map[string]any)
	current := ""
	var lines []string

	flush := func() {
		if current == "" {
			return
		}
		fields[current] = strings.TrimSpace(strings.Join(lines, "\n"))
		current, lines = "", nil
	}

	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "---" {
			break
		}
		if m := markdownFieldPattern.FindStringSubmatch(line); m != nil {
			flush()
			current = strings.ToLower(m[1])
			lines = append(lines, m[2])
			continue
		}
		// Continuation lines extend multi-line fields; status is single-line.
		if current != "" && current != "status" {
			lines = append(lines, line)
		}
	}
	flush()

	fields["task_id"] = taskID
	res, err := models.ExecutionResultFromMap(fields)
	if err != nil {
		return nil
	}
	return res
}

var (
	xmlResultPattern  = regexp.MustCompile(`(?s)<task_result\s+task_id="([^"]*)"\s*>(.*?)</task_result>`)
	xmlStatusPattern  = regexp.MustCompile(`(?s)<status>(.*?)</status>`)
	xmlOutputPattern  = regexp.MustCompile(`(?s)<output>(.*?)</output>`)
	xmlSummaryPattern = regexp.MustCompile(`(?s)<summary>(.*?)</summary>`)
)

// parseTaskResultXML locates the outer task_result tag by its task_id
// attribute and extracts the status/output/summary subtags. All four
// pieces must be present or the parse fails.
func parseTaskResultXML(raw string) *models.ExecutionResult {
	outer := xmlResultPattern.FindStringSubmatch(raw)
	if outer == nil {
		return nil
	}
	body := outer[2]

	status := xmlStatusPattern.FindStringSubmatch(body)
	output := xmlOutputPattern.FindStringSubmatch(body)
	summary := xmlSummaryPattern.FindStringSubmatch(body)
	if status == nil || output == nil || summary == nil {
		return nil
	}

	res, err := models.ExecutionResultFromMap(map[string]any{
		"task_id": xmlUnescape(outer[1]),
		"status":  strings.TrimSpace(xmlUnescape(status[1])),
		"output":  xmlUnescape(strings.TrimSpace(output[1])),
		"summary": xmlUnescape(strings.TrimSpace(summary[1])),
	})
	if err != nil {
		return nil
	}
	return res
}
