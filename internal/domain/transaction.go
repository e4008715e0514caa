package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType encodes the direction of a transaction. Amounts are stored
// positive; the type alone decides whether a balance goes up or down.
type TransactionType string

const (
	TypeIncome           TransactionType = "income"
	TypeExpense          TransactionType = "expense"
	TypeTransferSender   TransactionType = "transfer-sender"
	TypeTransferReceiver TransactionType = "transfer-receiver"
)

// IsTransfer reports whether the type is either half of a transfer pair.
func (t TransactionType) IsTransfer() bool {
	return t == TypeTransferSender || t == TypeTransferReceiver
}

// Frequency is the recurrence tag carried by a transaction.
type Frequency string

const (
	FrequencyNone    Frequency = "none"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// AllocationType says how much of a transaction applies to a linked goal:
// the full amount, or a split portion supplied alongside the transaction.
type AllocationType string

const (
	AllocationFull  AllocationType = "full"
	AllocationSplit AllocationType = "split"
)

// Transaction is one financial movement on a single account. A transfer
// between two accounts is represented as two linked transactions sharing a
// TransferGroupID.
type Transaction struct {
	ID        string
	UserID    string
	AccountID string

	// CategoryID is empty for uncategorized rows and for transfers.
	CategoryID string

	Type     TransactionType
	Amount   decimal.Decimal // always > 0
	Currency string

	Description string
	Notes       string

	Date      time.Time
	Frequency Frequency

	// Goal linkage; all three are set together or not at all.
	GoalID         string
	GoalAmount     decimal.Decimal
	GoalAllocation AllocationType

	// TransferGroupID links the sender and receiver halves of a transfer.
	TransferGroupID string

	// ImportRunID is set when the transaction came in through a bulk import.
	ImportRunID string
}
