// Package worker defines the contract between the execution controller
// and whatever actually performs a subtask: an external command, an agent
// runtime, or a scripted double in tests.
package worker

import "context"

// Request carries one subtask to a worker. Payload is the subtask encoded
// in the configured wire format: a map for json, text for the others.
// Instructions tells the worker what shape to report its result in.
type Request struct {
	TaskID       string
	Title        string
	Description  string
	Payload      any
	Instructions string
}

// Response is the worker's raw report. When Data is non-nil it is taken
// as the structured result and Text is ignored; otherwise Text is parsed
// with the tolerant format parsers.
type Response struct {
	Text string
	Data map[string]any
}

// Worker executes one subtask and reports a result. A returned error is
// never fatal to the orchestration loop; the controller downgrades it to
// a malformed-result record, the same as unparseable output.
type Worker interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}
