package csvimport

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/budgetbook/budgetbook/internal/domain"
)

// Store is the persistence surface the committer writes through. BigQuery
// implements it in production; tests substitute an in-memory fake.
type Store interface {
	InsertTransaction(ctx context.Context, tx *domain.Transaction) (string, error)
	UpdateAccountBalance(ctx context.Context, accountID string, delta decimal.Decimal) error
	GetGoal(ctx context.Context, goalID string) (*domain.Goal, error)
	UpdateGoalAmount(ctx context.Context, goalID string, current decimal.Decimal) error
}

// ReferenceLoader fetches the snapshot an import session resolves names
// against.
type ReferenceLoader interface {
	LoadReferenceSnapshot(ctx context.Context) (*ReferenceSnapshot, error)
}
