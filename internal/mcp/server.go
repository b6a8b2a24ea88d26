// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the conductor task orchestration operations as tools for an external
// planner agent.
package mcp

import (
	"context"
	"fmt"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/conductor/internal/core"
	"github.com/valter-silva-au/conductor/pkg/models"
)

// Server wraps an execution controller and exposes it as MCP tools.
type Server struct {
	server     *gomcp.Server
	mgr        *core.Manager
	enableSkip bool
}

// NewServer creates a new MCP server around the given manager. The skip
// tool is registered only when enableSkip is set.
func NewServer(mgr *core.Manager, enableSkip bool, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		mgr:        mgr,
		enableSkip: enableSkip,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "conductor", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type addSubtaskInput struct {
	Title       string `json:"title" jsonschema:"required,short subtask title"`
	Description string `json:"description" jsonschema:"required,detailed subtask description"`
}

type subtaskOutput struct {
	TaskID      string `json:"task_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type listSubtasksInput struct{}

type listSubtasksOutput struct {
	Subtasks []subtaskOutput `json:"subtasks"`
	Count    int             `json:"count"`
}

type getCurrentSubtaskInput struct{}

type getCurrentSubtaskOutput struct {
	Subtask *subtaskOutput `json:"subtask,omitempty"`
	Message string         `json:"message,omitempty"`
}

type executeCurrentSubtaskInput struct{}

type recordOutput struct {
	TaskID      string `json:"task_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Output      string `json:"output"`
	Summary     string `json:"summary"`
}

type executeCurrentSubtaskOutput struct {
	Record recordOutput `json:"record"`
	Action string       `json:"action,omitempty"`
	Error  string       `json:"error,omitempty"`
}

type subtaskSpecInput struct {
	Title       string `json:"title" jsonschema:"required,short subtask title"`
	Description string `json:"description" jsonschema:"required,detailed subtask description"`
}

type decomposeSubtaskInput struct {
	TaskID   string             `json:"task_id" jsonschema:"required,the id of the current subtask to decompose"`
	Subtasks []subtaskSpecInput `json:"subtasks" jsonschema:"required,ordered child subtask specs (1-3 is the sweet spot)"`
}

type decomposeSubtaskOutput struct {
	Inserted []subtaskOutput `json:"inserted"`
}

type skipSubtaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the id of the current subtask to skip"`
	Reason string `json:"reason" jsonschema:"required,why the subtask is skipped"`
}

type skipSubtaskOutput struct {
	Subtask *subtaskOutput `json:"subtask,omitempty"`
	Message string         `json:"message,omitempty"`
}

type getRecordsInput struct {
	Pool bool `json:"pool,omitempty" jsonschema:"read the cross-invocation pool instead of this manager's log"`
}

type getRecordsOutput struct {
	Records []recordOutput `json:"records"`
	Count   int            `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "add_subtask",
		Description: "Append a new subtask to the plan. Rejected once the configured task limit is reached.",
	}, s.handleAddSubtask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_subtasks",
		Description: "List every subtask in order with its id and status.",
	}, s.handleListSubtasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_current_subtask",
		Description: "Return the subtask the worker should act on next, or a message when none is active.",
	}, s.handleGetCurrentSubtask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "execute_current_subtask",
		Description: "Run the worker against the current subtask, apply the reported status, and advance or hold the pointer. Malformed worker output is recorded as incomplete with an error marker.",
	}, s.handleExecuteCurrentSubtask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "decompose_subtask",
		Description: "Split the current subtask into ordered children inserted right after it. The task_id must name the current subtask.",
	}, s.handleDecomposeSubtask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_records",
		Description: "Return the append-only execution records, either for this manager or the shared pool.",
	}, s.handleGetRecords)

	if s.enableSkip {
		gomcp.AddTool(s.server, &gomcp.Tool{
			Name:        "skip",
			Description: "Skip the current subtask with a mandatory reason and advance to the next one.",
		}, s.handleSkipSubtask)
	}
}

// --- Tool handlers ---

func (s *Server) handleAddSubtask(_ context.Context, _ *gomcp.CallToolRequest, input addSubtaskInput) (*gomcp.CallToolResult, subtaskOutput, error) {
	if input.Title == "" {
		return errorResult("title is required"), subtaskOutput{}, nil
	}
	if input.Description == "" {
		return errorResult("description is required"), subtaskOutput{}, nil
	}

	sub, err := s.mgr.Add(input.Title, input.Description)
	if err != nil {
		return errorResult(err.Error()), subtaskOutput{}, nil
	}

	return nil, subtaskToOutput(*sub), nil
}

func (s *Server) handleListSubtasks(_ context.Context, _ *gomcp.CallToolRequest, _ listSubtasksInput) (*gomcp.CallToolResult, listSubtasksOutput, error) {
	subtasks, err := s.mgr.List()
	if err != nil {
		return errorResult(fmt.Sprintf("listing subtasks: %s", err)), listSubtasksOutput{}, nil
	}

	out := listSubtasksOutput{
		Subtasks: make([]subtaskOutput, len(subtasks)),
		Count:    len(subtasks),
	}
	for i, sub := range subtasks {
		out.Subtasks[i] = subtaskToOutput(sub)
	}

	return nil, out, nil
}

func (s *Server) handleGetCurrentSubtask(_ context.Context, _ *gomcp.CallToolRequest, _ getCurrentSubtaskInput) (*gomcp.CallToolResult, getCurrentSubtaskOutput, error) {
	cur, err := s.mgr.CurrentSubtask()
	if err != nil {
		return errorResult(fmt.Sprintf("getting current subtask: %s", err)), getCurrentSubtaskOutput{}, nil
	}
	if cur == nil {
		return nil, getCurrentSubtaskOutput{Message: core.MsgNoActiveSubtasks}, nil
	}

	out := subtaskToOutput(*cur)
	return nil, getCurrentSubtaskOutput{Subtask: &out}, nil
}

func (s *Server) handleExecuteCurrentSubtask(ctx context.Context, _ *gomcp.CallToolRequest, _ executeCurrentSubtaskInput) (*gomcp.CallToolResult, executeCurrentSubtaskOutput, error) {
	outcome, err := s.mgr.ExecuteCurrent(ctx)
	if err != nil {
		return errorResult(err.Error()), executeCurrentSubtaskOutput{}, nil
	}

	out := executeCurrentSubtaskOutput{
		Record: recordToOutput(outcome.Record),
		Action: outcome.Action,
	}
	if outcome.Malformed {
		out.Error = core.MsgResultMalformed
	}

	return nil, out, nil
}

func (s *Server) handleDecomposeSubtask(_ context.Context, _ *gomcp.CallToolRequest, input decomposeSubtaskInput) (*gomcp.CallToolResult, decomposeSubtaskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), decomposeSubtaskOutput{}, nil
	}

	d := models.Decomposition{Subtasks: make([]models.SubtaskSpec, len(input.Subtasks))}
	for i, spec := range input.Subtasks {
		d.Subtasks[i] = models.SubtaskSpec{Title: spec.Title, Description: spec.Description}
	}

	inserted, err := s.mgr.Decompose(input.TaskID, d)
	if err != nil {
		return errorResult(err.Error()), decomposeSubtaskOutput{}, nil
	}

	out := decomposeSubtaskOutput{Inserted: make([]subtaskOutput, len(inserted))}
	for i, sub := range inserted {
		out.Inserted[i] = subtaskToOutput(sub)
	}

	return nil, out, nil
}

func (s *Server) handleSkipSubtask(_ context.Context, _ *gomcp.CallToolRequest, input skipSubtaskInput) (*gomcp.CallToolResult, skipSubtaskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), skipSubtaskOutput{}, nil
	}

	next, err := s.mgr.Skip(input.TaskID, input.Reason)
	if err != nil {
		return errorResult(err.Error()), skipSubtaskOutput{}, nil
	}
	if next == nil {
		return nil, skipSubtaskOutput{Message: core.MsgNoActiveSubtasks}, nil
	}

	out := subtaskToOutput(*next)
	return nil, skipSubtaskOutput{Subtask: &out}, nil
}

func (s *Server) handleGetRecords(_ context.Context, _ *gomcp.CallToolRequest, input getRecordsInput) (*gomcp.CallToolResult, getRecordsOutput, error) {
	var records []models.ExecutionRecord
	var err error
	if input.Pool {
		records, err = s.mgr.PoolRecords()
	} else {
		records, err = s.mgr.Records()
	}
	if err != nil {
		return errorResult(fmt.Sprintf("getting records: %s", err)), getRecordsOutput{}, nil
	}

	out := getRecordsOutput{
		Records: make([]recordOutput, len(records)),
		Count:   len(records),
	}
	for i, rec := range records {
		out.Records[i] = recordToOutput(rec)
	}

	return nil, out, nil
}

// --- Helpers ---

func subtaskToOutput(s models.Subtask) subtaskOutput {
	return subtaskOutput{
		TaskID:      s.ID,
		Title:       s.Title,
		Description: s.Description,
		Status:      string(s.Status),
	}
}

func recordToOutput(r models.ExecutionRecord) recordOutput {
	return recordOutput{
		TaskID:      r.TaskID,
		Title:       r.Title,
		Description: r.Description,
		Status:      string(r.Status),
		Output:      r.Output,
		Summary:     r.Summary,
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
