package domain

import "github.com/shopspring/decimal"

// Account is an external entity the import core reads for lookups. Balance is
// only ever mutated through the store's delta update, never written directly.
type Account struct {
	ID       string
	Name     string
	Currency string
	Balance  decimal.Decimal
}

// Category is valid for exactly one transaction type (income or expense).
type Category struct {
	ID   string
	Name string
	Type TransactionType
}

// Goal is a savings target whose current amount moves when linked
// transactions are committed.
type Goal struct {
	ID            string
	Name          string
	CurrentAmount decimal.Decimal
	TargetAmount  decimal.Decimal
}
