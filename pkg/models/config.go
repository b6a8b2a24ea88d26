package models

// Config holds the merged runtime configuration for a conductor instance.
// Loaded from .conductorrc by core.NewConfigurationManager; every field has
// a default so a missing config file is not an error.
type Config struct {
	// Format selects the wire encoding used both to serialize subtasks for
	// the worker and to parse its results: json, markdown, yaml, or xml.
	Format string `yaml:"format"`

	// MaxTasks is the ceiling on the subtask list; add_subtask is rejected
	// once reached. Acts as a guardrail encouraging decomposition.
	MaxTasks int `yaml:"max_tasks"`

	// Namespace scopes all persisted state for this conductor deployment.
	Namespace string `yaml:"namespace"`

	// Scope is the global task scope within the namespace. Managers in the
	// same scope share one record pool.
	Scope string `yaml:"scope"`

	// ManagerName distinguishes multiple managers within one namespace.
	ManagerName string `yaml:"manager_name"`

	// InvocationID scopes the task tree to one planner conversation.
	// When empty, the CLI uses "default" and the MCP server generates one.
	InvocationID string `yaml:"invocation_id"`

	// StorePath is the LevelDB directory for persisted state. Empty means
	// in-memory only (state does not survive the process).
	StorePath string `yaml:"store_path"`

	// WorkerCommand and WorkerArgs define the external worker process.
	// The formatted subtask is piped to its stdin; stdout is parsed as the
	// execution result.
	WorkerCommand string   `yaml:"worker_command"`
	WorkerArgs    []string `yaml:"worker_args"`

	// TypeHint wraps textual worker payloads in a fenced block labeled
	// with the format name so the worker can identify the encoding.
	TypeHint bool `yaml:"type_hint"`

	// EnableSkip exposes the skip operation on the tool surface.
	EnableSkip bool `yaml:"enable_skip"`
}
