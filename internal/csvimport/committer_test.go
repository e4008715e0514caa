package csvimport

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetbook/budgetbook/internal/domain"
)

type fakeStore struct {
	transactions []*domain.Transaction
	deltas       map[string]decimal.Decimal
	goals        map[string]*domain.Goal

	insertErr error
	failAfter int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		deltas: make(map[string]decimal.Decimal),
		goals: map[string]*domain.Goal{
			"goal-1": {ID: "goal-1", Name: "Vacation", CurrentAmount: decimal.NewFromInt(200), TargetAmount: decimal.NewFromInt(1000)},
		},
	}
}

func (f *fakeStore) InsertTransaction(_ context.Context, tx *domain.Transaction) (string, error) {
	if f.insertErr != nil && len(f.transactions) >= f.failAfter {
		return "", f.insertErr
	}
	f.transactions = append(f.transactions, tx)
	return "tx-id", nil
}

func (f *fakeStore) UpdateAccountBalance(_ context.Context, accountID string, delta decimal.Decimal) error {
	f.deltas[accountID] = f.deltas[accountID].Add(delta)
	return nil
}

func (f *fakeStore) GetGoal(_ context.Context, goalID string) (*domain.Goal, error) {
	goal, ok := f.goals[goalID]
	if !ok {
		return nil, errors.New("goal not found")
	}
	copied := *goal
	return &copied, nil
}

func (f *fakeStore) UpdateGoalAmount(_ context.Context, goalID string, current decimal.Decimal) error {
	f.goals[goalID].CurrentAmount = current
	return nil
}

func validatedSession(t *testing.T, input string) *Session {
	t.Helper()
	parsed, err := Parse(input, true)
	require.NoError(t, err)
	s := NewSession(parsed, testSnapshot())
	require.NoError(t, s.ValidateAll())
	return s
}

func TestCommit_SimpleRows(t *testing.T) {
	s := validatedSession(t, "Type,Amount,Date,Account,Category,Title\n"+
		"expense,12.50,2025-01-15,Checking,Groceries,Lunch\n"+
		"income,2000,2025-01-01,Savings,Salary,Pay\n")
	store := newFakeStore()
	c := NewCommitter(store, zerolog.Nop(), "user-1")

	result, err := c.Commit(context.Background(), s, nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.SuccessfulImports)
	assert.Equal(t, 0, result.FailedImports)
	assert.Equal(t, "Imported 2 of 2 rows (0 failed)", result.Summary)

	require.Len(t, store.transactions, 2)
	expense := store.transactions[0]
	assert.Equal(t, "user-1", expense.UserID)
	assert.Equal(t, "acc-1", expense.AccountID)
	assert.Equal(t, "cat-1", expense.CategoryID)
	assert.Equal(t, domain.TypeExpense, expense.Type)
	assert.Equal(t, "USD", expense.Currency)
	assert.Equal(t, "Lunch", expense.Description)
	assert.NotEmpty(t, expense.ImportRunID)

	// Expense debits, income credits.
	assert.True(t, store.deltas["acc-1"].Equal(decimal.RequireFromString("-12.5")))
	assert.True(t, store.deltas["acc-2"].Equal(decimal.NewFromInt(2000)))
}

func TestCommit_Transfer(t *testing.T) {
	s := validatedSession(t, "Type,Amount,Date,From,To\n"+
		"transfer,100,2025-01-15,Checking,Savings\n")
	store := newFakeStore()
	result, err := NewCommitter(store, zerolog.Nop(), "user-1").Commit(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessfulImports)

	require.Len(t, store.transactions, 2)
	sender, receiver := store.transactions[0], store.transactions[1]
	assert.Equal(t, domain.TypeTransferSender, sender.Type)
	assert.Equal(t, domain.TypeTransferReceiver, receiver.Type)
	assert.Equal(t, "acc-1", sender.AccountID)
	assert.Equal(t, "acc-2", receiver.AccountID)
	assert.NotEmpty(t, sender.TransferGroupID)
	assert.Equal(t, sender.TransferGroupID, receiver.TransferGroupID)
	assert.Equal(t, "Transfer to Savings", sender.Description)
	assert.Equal(t, "Transfer from Checking", receiver.Description)

	assert.True(t, store.deltas["acc-1"].Equal(decimal.NewFromInt(-100)))
	assert.True(t, store.deltas["acc-2"].Equal(decimal.NewFromInt(100)))
}

func TestCommit_GoalContributions(t *testing.T) {
	s := validatedSession(t, "Type,Amount,Date,Account,Goal,Deduction,Goal Amount\n"+
		"income,100,2025-01-15,Checking,Vacation,split,40\n"+
		"expense,500,2025-01-16,Checking,Vacation,full,\n")
	store := newFakeStore()

	result, err := NewCommitter(store, zerolog.Nop(), "user-1").Commit(context.Background(), s, nil)
	require.NoError(t, err)
	require.Equal(t, 2, result.SuccessfulImports, "errors: %v", result.Errors)

	// 200 + 40, then the full 500 expense clamps at zero.
	assert.True(t, store.goals["goal-1"].CurrentAmount.IsZero())

	income := store.transactions[0]
	assert.Equal(t, "goal-1", income.GoalID)
	assert.Equal(t, domain.AllocationSplit, income.GoalAllocation)
	assert.True(t, income.GoalAmount.Equal(decimal.NewFromInt(40)))

	expense := store.transactions[1]
	assert.Equal(t, domain.AllocationFull, expense.GoalAllocation)
	assert.True(t, expense.GoalAmount.Equal(decimal.NewFromInt(500)))
}

func TestCommit_InvalidIncludedRowCountsFailed(t *testing.T) {
	s := validatedSession(t, "Type,Amount,Date,Account\n"+
		"expense,12.50,2025-01-15,Checking\n"+
		"expense,12.50,2025-01-15,Wallet\n")
	store := newFakeStore()

	result, err := NewCommitter(store, zerolog.Nop(), "user-1").Commit(context.Background(), s, nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.SuccessfulImports)
	assert.Equal(t, 1, result.FailedImports)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].RowIndex)
	assert.Contains(t, result.Errors[0].Message, "validation errors")
	assert.Equal(t, "Imported 1 of 2 rows (1 failed)", result.Summary)

	// The invalid row never reached the store.
	assert.Len(t, store.transactions, 1)
}

func TestCommit_StoreFailureSkipsRowAndContinues(t *testing.T) {
	s := validatedSession(t, "Type,Amount,Date,Account\n"+
		"expense,1.00,2025-01-15,Checking\n"+
		"expense,2.00,2025-01-15,Checking\n")
	store := newFakeStore()
	store.insertErr = errors.New("stream closed")
	store.failAfter = 1

	result, err := NewCommitter(store, zerolog.Nop(), "user-1").Commit(context.Background(), s, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessfulImports)
	assert.Equal(t, 1, result.FailedImports)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "stream closed")
}

func TestCommit_Cancellation(t *testing.T) {
	s := validatedSession(t, "Type,Amount,Date,Account\n"+
		"expense,1.00,2025-01-15,Checking\n"+
		"expense,2.00,2025-01-15,Checking\n"+
		"expense,3.00,2025-01-15,Checking\n")
	store := newFakeStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewCommitter(store, zerolog.Nop(), "user-1").Commit(ctx, s, nil)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 0, result.SuccessfulImports)
	assert.Equal(t, 3, result.FailedImports)
	for _, rowErr := range result.Errors {
		assert.Equal(t, "import cancelled", rowErr.Message)
	}
	assert.Empty(t, store.transactions)
}

func TestCommit_ProgressReporting(t *testing.T) {
	s := validatedSession(t, "Type,Amount,Date,Account\n"+
		"expense,1.00,2025-01-15,Checking\n"+
		"expense,2.00,2025-01-15,Checking\n"+
		"expense,3.00,2025-01-15,Checking\n"+
		"expense,4.00,2025-01-15,Checking\n")
	store := newFakeStore()

	var progress []int
	_, err := NewCommitter(store, zerolog.Nop(), "user-1").
		Commit(context.Background(), s, func(pct int) { progress = append(progress, pct) })
	require.NoError(t, err)

	assert.Equal(t, []int{25, 50, 75, 100}, progress)
}

func TestCommit_ExcludedRowsSkipped(t *testing.T) {
	s := validatedSession(t, "Type,Amount,Date,Account\n"+
		"expense,1.00,2025-01-15,Checking\n"+
		"expense,2.00,2025-01-15,Checking\n")
	_, err := s.SetIncluded(1, false)
	require.NoError(t, err)

	store := newFakeStore()
	result, err := NewCommitter(store, zerolog.Nop(), "user-1").Commit(context.Background(), s, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessfulImports)
	require.Len(t, store.transactions, 1)
	assert.True(t, store.transactions[0].Amount.Equal(decimal.NewFromInt(2)))
}
