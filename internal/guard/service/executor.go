package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"

	dbpkg "github.com/stockguard/server/internal/db"
)

// Executor performs the irreversible cross-table erasure once quorum is
// reached.
type Executor interface {
	Execute(ctx context.Context) (ExecutionResult, error)
}

// clearStages lists every mutable entity table in foreign-key dependency
// order: line items before their parent transactions, adjustments before
// master entities, items before the catalogs they reference. Account,
// settings, and guard-subsystem tables are deliberately absent.
var clearStages = [][]string{
	{"purchase_items", "sale_items"},
	{"purchases", "sales", "stock_adjustments"},
	{"items"},
	{"categories", "suppliers"},
}

// DestructiveActionExecutor clears every mutable entity table through the
// store handle. Tables within a stage are fired concurrently, each in its
// own transaction, and the call waits for all of them. There is no
// cross-table rollback: a table that cleared stays cleared even when a
// later one fails, and the typed result says exactly which is which.
type DestructiveActionExecutor struct {
	h      *dbpkg.Handle
	logger *zap.Logger
}

func NewDestructiveActionExecutor(h *dbpkg.Handle, logger *zap.Logger) *DestructiveActionExecutor {
	return &DestructiveActionExecutor{h: h, logger: logger}
}

func (e *DestructiveActionExecutor) Execute(ctx context.Context) (ExecutionResult, error) {
	var result ExecutionResult

	// Every stage is attempted even after an earlier failure; a blocked
	// delete shows up as its own outcome rather than hiding behind the
	// first error.
	for _, stage := range clearStages {
		outcomes := make([]TableOutcome, len(stage))

		var wg sync.WaitGroup
		for i, table := range stage {
			wg.Add(1)
			go func(i int, table string) {
				defer wg.Done()
				outcomes[i] = e.clearTable(ctx, table)
			}(i, table)
		}
		wg.Wait()

		result.Outcomes = append(result.Outcomes, outcomes...)
	}

	for _, o := range result.Outcomes {
		if o.Err != nil {
			e.logger.Error("destructive clear incomplete",
				zap.String("table", o.Table), zap.Error(o.Err))
		} else {
			e.logger.Info("table cleared",
				zap.String("table", o.Table), zap.Int64("rows", o.RowsDeleted))
		}
	}

	if !result.AllSucceeded() {
		return result, &PartialExecutionError{Outcomes: result.Outcomes}
	}
	return result, nil
}

func (e *DestructiveActionExecutor) clearTable(ctx context.Context, table string) TableOutcome {
	o := TableOutcome{Table: table}
	o.Err = e.h.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s;", table))
		if err != nil {
			return err
		}
		o.RowsDeleted, _ = res.RowsAffected()
		return nil
	})
	return o
}
