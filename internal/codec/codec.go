// Package codec maps subtasks and execution results to and from the four
// wire encodings spoken between the planner and the worker: json (the
// canonical, lossless form), markdown key-value blocks, yaml mappings, and
// xml tag blocks.
//
// Serialization is the easy direction. Parsing has to survive free-text
// LLM output: fenced blocks, single-quoted near-JSON, stray prose around
// the payload. Parsers are pure functions that return nil instead of
// erroring on anything they cannot make sense of.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valter-silva-au/conductor/pkg/models"
)

// Format identifies one wire encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
	FormatXML      Format = "xml"
)

// parseOrder is the deterministic order in which parsers are attempted
// when the input carries no fenced-block hint. JSON first: it is the
// canonical encoding, and text that parses as valid JSON should never be
// claimed by a looser format.
var parseOrder = []Format{FormatJSON, FormatMarkdown, FormatYAML, FormatXML}

// ValidFormat reports whether f names a known encoding.
func ValidFormat(f Format) bool {
	switch f {
	case FormatJSON, FormatMarkdown, FormatYAML, FormatXML:
		return true
	}
	return false
}

// formatFuncs bundles the serializer/parser pair for one encoding.
type formatFuncs struct {
	subtask    func(models.Subtask) any
	taskResult func(models.ExecutionResult) any
	parse      func(string) *models.ExecutionResult
}

// dispatch is the format dispatch table. Adding an encoding means adding
// one entry here plus its three functions.
var dispatch = map[Format]formatFuncs{
	FormatJSON:     {subtaskToMap, taskResultToMap, parseTaskResultJSON},
	FormatMarkdown: {subtaskToMarkdown, taskResultToMarkdown, parseTaskResultMarkdown},
	FormatYAML:     {subtaskToYAML, taskResultToYAML, parseTaskResultYAML},
	FormatXML:      {subtaskToXML, taskResultToXML, parseTaskResultXML},
}

// Codec formats and parses subtasks and execution results in one fixed
// encoding. The zero value is not usable; construct with New.
type Codec struct {
	format Format
}

// New returns a Codec for the given format. Unknown formats fall back to
// JSON, the canonical encoding.
func New(format Format) Codec {
	if !ValidFormat(format) {
		format = FormatJSON
	}
	return Codec{format: format}
}

// Format returns the codec's encoding.
func (c Codec) Format() Format {
	return c.format
}

// FormatSubtask serializes one subtask. JSON yields structured data
// (map[string]any); the other formats yield text. With typeHint set,
// textual output is wrapped in a fenced block labeled with the format
// name so the consumer can self-identify the encoding.
func (c Codec) FormatSubtask(s models.Subtask, typeHint bool) any {
	out := dispatch[c.format].subtask(s)
	if text, ok := out.(string); ok && typeHint {
		return fence(c.format, text)
	}
	return out
}

// FormatSubtasks serializes an ordered list of subtasks: a slice of maps
// for JSON, concatenated blocks for the textual formats.
func (c Codec) FormatSubtasks(subtasks []models.Subtask) any {
	if c.format == FormatJSON {
		out := make([]map[string]any, len(subtasks))
		for i, s := range subtasks {
			out[i] = subtaskToMap(s).(map[string]any)
		}
		return out
	}

	blocks := make([]string, len(subtasks))
	for i, s := range subtasks {
		blocks[i] = dispatch[c.format].subtask(s).(string)
	}
	joined := strings.Join(blocks, "\n")
	if c.format == FormatXML {
		return "<subtasks>\n" + joined + "\n</subtasks>"
	}
	return joined
}

// FormatTaskResult serializes one execution result, mirroring
// FormatSubtask's typeHint behavior.
func (c Codec) FormatTaskResult(r models.ExecutionResult, typeHint bool) any {
	out := dispatch[c.format].taskResult(r)
	if text, ok := out.(string); ok && typeHint {
		return fence(c.format, text)
	}
	return out
}

// ResultShapeDescription returns a short instruction telling the worker
// what shape to report its result in, in the codec's encoding.
func (c Codec) ResultShapeDescription() string {
	example := models.ExecutionResult{
		TaskID:  "<task_id>",
		Status:  "done",
		Output:  "<what happened, factually>",
		Summary: "<brief recap; if incomplete, what remains>",
	}
	var body string
	switch out := dispatch[c.format].taskResult(example).(type) {
	case string:
		body = out
	default:
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			body = fmt.Sprintf("%v", out)
		} else {
			body = string(data)
		}
	}
	return "Report the result in the following shape:\n" + fence(c.format, body)
}

// ParseTaskResult extracts an ExecutionResult from raw worker output.
//
// Strategy: first look for a fenced block labeled with a known format
// name and parse its contents with that format's parser; then try every
// parser directly on the raw text in fixed order; give up with nil.
// Never panics regardless of input.
func ParseTaskResult(raw string) *models.ExecutionResult {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	for _, f := range parseOrder {
		if block, ok := fencedBlock(raw, f); ok {
			if res := dispatch[f].parse(block); res != nil {
				return res
			}
		}
	}

	for _, f := range parseOrder {
		if res := dispatch[f].parse(raw); res != nil {
			return res
		}
	}

	return nil
}

// fence wraps body in a triple-backtick block labeled with the format name.
func fence(f Format, body string) string {
	return "```" + string(f) + "\n" + body + "\n```"
}

// fencedBlock extracts the first fenced block labeled with the given
// format name, tolerating trailing whitespace after the label.
func fencedBlock(raw string, f Format) (string, bool) {
	marker := "```" + string(f)
	start := strings.Index(raw, marker)
	if start < 0 {
		return "", false
	}
	rest := raw[start+len(marker):]

	// The label must end the line; "```jsonx" is not a json fence.
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 || strings.TrimSpace(rest[:nl]) != "" {
		return "", false
	}
	rest = rest[nl+1:]

	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimRight(rest[:end], "\n"), true
}
