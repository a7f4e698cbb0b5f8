package sheets

import (
	"context"

	"outlay/internal/core"
)

// RowAppender mirrors a persisted expense to an external spreadsheet.
type RowAppender interface {
	AppendExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
}
