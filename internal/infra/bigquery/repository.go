package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/budgetbook/budgetbook/internal/csvimport"
	"github.com/budgetbook/budgetbook/internal/domain"
)

// Repository holds a shared BigQuery client and adapts the query helpers to
// the domain types the import pipeline works with. It implements both the
// committer's store and the reference snapshot loader.
type Repository struct {
	client *bigquery.Client
}

// NewRepository creates a repository with a shared BigQuery client.
func NewRepository(ctx context.Context) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// numericScale is the NUMERIC scale money columns are read back at.
const numericScale = 2

func ratToDecimal(rat *big.Rat) decimal.Decimal {
	if rat == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(rat, numericScale)
}

func decimalToRat(d decimal.Decimal) *big.Rat {
	return d.Rat()
}

func accountToDomain(row *AccountRow) domain.Account {
	return domain.Account{
		ID:       row.AccountID,
		Name:     row.AccountName,
		Currency: row.Currency,
		Balance:  ratToDecimal(row.Balance),
	}
}

func categoryToDomain(row CategoryRow) domain.Category {
	return domain.Category{
		ID:   row.CategoryID,
		Name: row.CategoryName,
		Type: domain.TransactionType(row.CategoryType),
	}
}

func goalToDomain(row *GoalRow) domain.Goal {
	return domain.Goal{
		ID:            row.GoalID,
		Name:          row.GoalName,
		CurrentAmount: ratToDecimal(row.CurrentAmount),
		TargetAmount:  ratToDecimal(row.TargetAmount),
	}
}

func transactionToRow(tx *domain.Transaction) *TransactionRow {
	row := &TransactionRow{
		TransactionID:   tx.ID,
		UserID:          tx.UserID,
		AccountID:       tx.AccountID,
		CategoryID:      tx.CategoryID,
		TransactionType: string(tx.Type),
		Amount:          decimalToRat(tx.Amount),
		Currency:        tx.Currency,
		Description:     tx.Description,
		Notes:           tx.Notes,
		TransactionDate: civil.DateOf(tx.Date),
		Frequency:       string(tx.Frequency),
		GoalID:          tx.GoalID,
		GoalAllocation:  string(tx.GoalAllocation),
		TransferGroupID: tx.TransferGroupID,
		ImportRunID:     tx.ImportRunID,
		CreatedTS:       time.Now(),
	}
	if tx.GoalID != "" {
		row.GoalAmount = decimalToRat(tx.GoalAmount)
	}
	return row
}

// LoadReferenceSnapshot reads accounts, categories and goals in one pass,
// implementing csvimport.ReferenceLoader.
func (r *Repository) LoadReferenceSnapshot(ctx context.Context) (*csvimport.ReferenceSnapshot, error) {
	accounts, err := r.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("LoadReferenceSnapshot: %w", err)
	}
	categories, err := r.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("LoadReferenceSnapshot: %w", err)
	}
	goals, err := r.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("LoadReferenceSnapshot: %w", err)
	}

	return &csvimport.ReferenceSnapshot{
		Accounts:   accounts,
		Categories: categories,
		Goals:      goals,
	}, nil
}

// ListAccounts returns every account as a domain value.
func (r *Repository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := ListAllAccountsWithClient(ctx, r.client)
	if err != nil {
		return nil, err
	}
	accounts := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, accountToDomain(row))
	}
	return accounts, nil
}

// ListCategories returns every active category as a domain value.
func (r *Repository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := ListActiveCategoriesWithClient(ctx, r.client)
	if err != nil {
		return nil, err
	}
	categories := make([]domain.Category, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, categoryToDomain(row))
	}
	return categories, nil
}

// ListGoals returns every goal as a domain value.
func (r *Repository) ListGoals(ctx context.Context) ([]domain.Goal, error) {
	rows, err := ListGoalsWithClient(ctx, r.client)
	if err != nil {
		return nil, err
	}
	goals := make([]domain.Goal, 0, len(rows))
	for _, row := range rows {
		goals = append(goals, goalToDomain(row))
	}
	return goals, nil
}

// InsertTransaction implements csvimport.Store.
func (r *Repository) InsertTransaction(ctx context.Context, tx *domain.Transaction) (string, error) {
	return InsertTransactionWithClient(ctx, r.client, transactionToRow(tx))
}

// UpdateAccountBalance implements csvimport.Store.
func (r *Repository) UpdateAccountBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	return UpdateAccountBalanceWithClient(ctx, r.client, accountID, decimalToRat(delta))
}

// GetGoal implements csvimport.Store.
func (r *Repository) GetGoal(ctx context.Context, goalID string) (*domain.Goal, error) {
	row, err := GetGoalWithClient(ctx, r.client, goalID)
	if err != nil {
		return nil, err
	}
	goal := goalToDomain(row)
	return &goal, nil
}

// UpdateGoalAmount implements csvimport.Store.
func (r *Repository) UpdateGoalAmount(ctx context.Context, goalID string, current decimal.Decimal) error {
	return UpdateGoalAmountWithClient(ctx, r.client, goalID, decimalToRat(current))
}

// RecordUpload stores one uploaded file's metadata and returns the upload ID.
func (r *Repository) RecordUpload(ctx context.Context, row *UploadRow) (string, error) {
	return InsertUploadWithClient(ctx, r.client, row)
}

// GetUpload retrieves one upload's metadata, nil when unknown.
func (r *Repository) GetUpload(ctx context.Context, uploadID string) (*UploadRow, error) {
	return GetUploadWithClient(ctx, r.client, uploadID)
}

// ListUploads retrieves upload metadata, newest first.
func (r *Repository) ListUploads(ctx context.Context) ([]*UploadRow, error) {
	return ListUploadsWithClient(ctx, r.client)
}

// StartImportRun records the start of a commit for audit purposes.
func (r *Repository) StartImportRun(ctx context.Context, sessionID, userID string) (string, error) {
	return StartImportRunWithClient(ctx, r.client, sessionID, userID)
}

// FinishImportRun records a commit's terminal state and row counts.
func (r *Repository) FinishImportRun(ctx context.Context, importRunID, status string, total, succeeded, failed int, errMsg string) error {
	return FinishImportRunWithClient(ctx, r.client, importRunID, status, total, succeeded, failed, errMsg)
}

// QueryTransactions returns transactions in a date range as domain values.
func (r *Repository) QueryTransactions(ctx context.Context, start, end time.Time) ([]*TransactionRow, error) {
	return QueryTransactionsByDateRangeWithClient(ctx, r.client, start, end)
}

var _ csvimport.Store = (*Repository)(nil)
var _ csvimport.ReferenceLoader = (*Repository)(nil)
