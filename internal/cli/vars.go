package cli

import (
	"github.com/valter-silva-au/conductor/internal/core"
	"github.com/valter-silva-au/conductor/internal/observability"
	"github.com/valter-silva-au/conductor/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	Mgr      *core.Manager
	EventLog observability.EventLog
	Cfg      *models.Config
	BasePath string

	// NewManagerForInvocation rebuilds the manager bound to a different
	// invocation scope; used by the mcp command for fresh sessions.
	NewManagerForInvocation func(invocationID string) (*core.Manager, error)
)
