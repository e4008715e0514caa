package csvimport

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/budgetbook/budgetbook/internal/domain"
)

// Committer writes a session's included rows to the store. Commits are not
// idempotent: rerunning one duplicates its transactions, so callers must
// invoke Commit at most once per session.
type Committer struct {
	store  Store
	log    zerolog.Logger
	userID string
}

func NewCommitter(store Store, log zerolog.Logger, userID string) *Committer {
	return &Committer{store: store, log: log, userID: userID}
}

// Commit processes the included rows sequentially, in file order. A row that
// fails is recorded and skipped; the run keeps going. Cancellation is checked
// between rows: already-written rows stay written, the remainder is marked
// failed, and the context error is returned alongside the partial result.
//
// onProgress, when non-nil, receives the completed percentage after each row.
func (c *Committer) Commit(ctx context.Context, session *Session, onProgress func(int)) (*ImportResult, error) {
	rows := session.IncludedRows()
	ref := session.Reference()
	runID := uuid.NewString()

	result := &ImportResult{}

	c.log.Info().
		Str("session_id", session.ID).
		Str("import_run_id", runID).
		Int("rows", len(rows)).
		Msg("starting import commit")

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			for _, remaining := range rows[i:] {
				result.FailedImports++
				result.Errors = append(result.Errors, RowError{
					RowIndex: remaining.Line,
					Message:  "import cancelled",
				})
			}
			c.finish(session.ID, runID, result, len(rows))
			return result, err
		}

		if err := c.commitRow(ctx, session, ref, row, runID); err != nil {
			result.FailedImports++
			result.Errors = append(result.Errors, RowError{RowIndex: row.Line, Message: err.Error()})
			c.log.Warn().
				Str("session_id", session.ID).
				Int("row", row.Line).
				Err(err).
				Msg("row import failed")
		} else {
			result.SuccessfulImports++
		}

		if onProgress != nil {
			onProgress(int(math.Round(float64(i+1) / float64(len(rows)) * 100)))
		}
	}

	c.finish(session.ID, runID, result, len(rows))
	return result, nil
}

func (c *Committer) finish(sessionID, runID string, result *ImportResult, total int) {
	result.Success = result.FailedImports == 0
	result.Summary = fmt.Sprintf("Imported %d of %d rows (%d failed)",
		result.SuccessfulImports, total, result.FailedImports)

	c.log.Info().
		Str("session_id", sessionID).
		Str("import_run_id", runID).
		Int("succeeded", result.SuccessfulImports).
		Int("failed", result.FailedImports).
		Msg("import commit finished")
}

func (c *Committer) commitRow(ctx context.Context, session *Session, ref *ReferenceSnapshot, row *ImportRow, runID string) error {
	if !row.Valid() {
		return fmt.Errorf("row has %d unresolved validation errors", len(row.Errors))
	}

	headers := session.Headers()
	mapping := session.Mapping()
	field := func(f HeaderField) string {
		return extractField(headers, mapping, row.Values, f)
	}

	date, err := parseRowDate(field(FieldDate))
	if err != nil {
		return fmt.Errorf("commitRow: %w", err)
	}
	amount, err := decimal.NewFromString(field(FieldAmount))
	if err != nil {
		return fmt.Errorf("commitRow: parse amount: %w", err)
	}
	txType, ok := NormalizeTransactionType(field(FieldType))
	if !ok {
		return fmt.Errorf("commitRow: unrecognized type %q", field(FieldType))
	}
	frequency, _ := NormalizeFrequency(field(FieldFrequency))

	if txType.IsTransfer() {
		return c.commitTransfer(ctx, ref, row, field, date, amount, frequency, runID)
	}
	return c.commitSimple(ctx, ref, row, field, txType, date, amount, frequency, runID)
}

func (c *Committer) commitSimple(ctx context.Context, ref *ReferenceSnapshot, row *ImportRow, field func(HeaderField) string, txType domain.TransactionType, date time.Time, amount decimal.Decimal, frequency domain.Frequency, runID string) error {
	account := ref.FindAccount(field(FieldAccount))
	if account == nil {
		return fmt.Errorf("account %q not found", field(FieldAccount))
	}

	tx := &domain.Transaction{
		UserID:      c.userID,
		AccountID:   account.ID,
		Type:        txType,
		Amount:      amount,
		Currency:    account.Currency,
		Description: field(FieldDescription),
		Notes:       field(FieldNotes),
		Date:        date,
		Frequency:   frequency,
		ImportRunID: runID,
	}
	if rawCategory := field(FieldCategory); rawCategory != "" {
		if category := ref.FindCategory(rawCategory, txType); category != nil {
			tx.CategoryID = category.ID
		}
	}

	goal := ref.FindGoal(field(FieldGoalName))
	if goal != nil {
		allocation, _ := NormalizeAllocation(field(FieldDeductionType))
		tx.GoalID = goal.ID
		tx.GoalAllocation = allocation
		if allocation == domain.AllocationSplit {
			goalAmount, err := decimal.NewFromString(field(FieldGoalAmount))
			if err != nil {
				return fmt.Errorf("commitSimple: parse goal amount: %w", err)
			}
			tx.GoalAmount = goalAmount
		} else {
			tx.GoalAmount = amount
		}
	}

	if _, err := c.store.InsertTransaction(ctx, tx); err != nil {
		return fmt.Errorf("commitSimple: insert transaction: %w", err)
	}

	delta := amount
	if txType == domain.TypeExpense {
		delta = amount.Neg()
	}
	if err := c.store.UpdateAccountBalance(ctx, account.ID, delta); err != nil {
		return fmt.Errorf("commitSimple: update balance for account %s: %w", account.ID, err)
	}

	if goal != nil {
		if err := c.applyGoalContribution(ctx, goal.ID, txType, tx.GoalAmount); err != nil {
			return fmt.Errorf("commitSimple: %w", err)
		}
	}
	return nil
}

// applyGoalContribution re-reads the goal before adjusting it so contributions
// from earlier rows in the same run are not overwritten.
func (c *Committer) applyGoalContribution(ctx context.Context, goalID string, txType domain.TransactionType, goalAmount decimal.Decimal) error {
	goal, err := c.store.GetGoal(ctx, goalID)
	if err != nil {
		return fmt.Errorf("get goal %s: %w", goalID, err)
	}

	current := goal.CurrentAmount
	if txType == domain.TypeIncome {
		current = current.Add(goalAmount)
	} else {
		current = current.Sub(goalAmount)
		if current.IsNegative() {
			current = decimal.Zero
		}
	}

	if err := c.store.UpdateGoalAmount(ctx, goalID, current); err != nil {
		return fmt.Errorf("update goal %s: %w", goalID, err)
	}
	return nil
}

// commitTransfer writes the sender and receiver legs as paired transactions
// sharing one transfer group ID, then moves the money between the two account
// balances.
func (c *Committer) commitTransfer(ctx context.Context, ref *ReferenceSnapshot, row *ImportRow, field func(HeaderField) string, date time.Time, amount decimal.Decimal, frequency domain.Frequency, runID string) error {
	from := ref.FindAccount(field(FieldFromAccount))
	if from == nil {
		return fmt.Errorf("source account %q not found", field(FieldFromAccount))
	}
	to := ref.FindAccount(field(FieldToAccount))
	if to == nil {
		return fmt.Errorf("destination account %q not found", field(FieldToAccount))
	}

	groupID := uuid.NewString()
	description := strings.TrimSpace(field(FieldDescription))
	senderDescription := description
	receiverDescription := description
	if description == "" {
		senderDescription = fmt.Sprintf("Transfer to %s", to.Name)
		receiverDescription = fmt.Sprintf("Transfer from %s", from.Name)
	}

	sender := &domain.Transaction{
		UserID:          c.userID,
		AccountID:       from.ID,
		Type:            domain.TypeTransferSender,
		Amount:          amount,
		Currency:        from.Currency,
		Description:     senderDescription,
		Notes:           field(FieldNotes),
		Date:            date,
		Frequency:       frequency,
		TransferGroupID: groupID,
		ImportRunID:     runID,
	}
	receiver := &domain.Transaction{
		UserID:          c.userID,
		AccountID:       to.ID,
		Type:            domain.TypeTransferReceiver,
		Amount:          amount,
		Currency:        to.Currency,
		Description:     receiverDescription,
		Notes:           field(FieldNotes),
		Date:            date,
		Frequency:       frequency,
		TransferGroupID: groupID,
		ImportRunID:     runID,
	}

	if _, err := c.store.InsertTransaction(ctx, sender); err != nil {
		return fmt.Errorf("commitTransfer: insert sender leg: %w", err)
	}
	if _, err := c.store.InsertTransaction(ctx, receiver); err != nil {
		return fmt.Errorf("commitTransfer: insert receiver leg: %w", err)
	}

	if err := c.store.UpdateAccountBalance(ctx, from.ID, amount.Neg()); err != nil {
		return fmt.Errorf("commitTransfer: debit account %s: %w", from.ID, err)
	}
	if err := c.store.UpdateAccountBalance(ctx, to.ID, amount); err != nil {
		return fmt.Errorf("commitTransfer: credit account %s: %w", to.ID, err)
	}
	return nil
}
