package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/nbti/promotion-engine/engine"
	"github.com/nbti/promotion-engine/store/sqlite"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Store     *sqlite.Store
	Evaluator *engine.Evaluator
	Allocator *engine.Allocator
	Steps     *engine.StepService
	Approvals *engine.ApprovalService
	Logger    *zap.Logger
	Ctx       context.Context
}
