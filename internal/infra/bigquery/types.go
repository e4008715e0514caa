package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

type AccountRow struct {
	AccountID string `bigquery:"account_id"` // REQUIRED

	UserID      string `bigquery:"user_id"`      // NULLABLE
	AccountName string `bigquery:"account_name"` // REQUIRED
	Currency    string `bigquery:"currency"`     // REQUIRED

	Balance *big.Rat `bigquery:"balance"` // REQUIRED NUMERIC

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED (default CURRENT_TIMESTAMP)
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

type CategoryRow struct {
	CategoryID string `bigquery:"category_id"` // REQUIRED

	UserID       string `bigquery:"user_id"`       // NULLABLE
	CategoryName string `bigquery:"category_name"` // REQUIRED
	CategoryType string `bigquery:"category_type"` // REQUIRED: income | expense

	IsActive bigquery.NullBool `bigquery:"is_active"` // NULLABLE, treated as active when null

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

type GoalRow struct {
	GoalID string `bigquery:"goal_id"` // REQUIRED

	UserID   string `bigquery:"user_id"`   // NULLABLE
	GoalName string `bigquery:"goal_name"` // REQUIRED

	CurrentAmount *big.Rat `bigquery:"current_amount"` // REQUIRED NUMERIC
	TargetAmount  *big.Rat `bigquery:"target_amount"`  // REQUIRED NUMERIC

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	UserID     string `bigquery:"user_id"`     // NULLABLE
	AccountID  string `bigquery:"account_id"`  // REQUIRED
	CategoryID string `bigquery:"category_id"` // NULLABLE, empty for transfers

	TransactionType string `bigquery:"transaction_type"` // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC, always positive
	Currency string   `bigquery:"currency"` // REQUIRED

	Description string `bigquery:"description"` // NULLABLE
	Notes       string `bigquery:"notes"`       // NULLABLE

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	Frequency string `bigquery:"frequency"` // NULLABLE, empty means one-off

	GoalID         string   `bigquery:"goal_id"`         // NULLABLE
	GoalAmount     *big.Rat `bigquery:"goal_amount"`     // NULLABLE NUMERIC
	GoalAllocation string   `bigquery:"goal_allocation"` // NULLABLE: full | split

	TransferGroupID string `bigquery:"transfer_group_id"` // NULLABLE, links transfer legs
	ImportRunID     string `bigquery:"import_run_id"`     // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED (default CURRENT_TIMESTAMP)
}

type UploadRow struct {
	UploadID string `bigquery:"upload_id"` // REQUIRED

	UserID      string `bigquery:"user_id"`      // NULLABLE
	Filename    string `bigquery:"filename"`     // REQUIRED
	GCSURI      string `bigquery:"gcs_uri"`      // REQUIRED
	SizeBytes   int64  `bigquery:"size_bytes"`   // REQUIRED
	ContentType string `bigquery:"content_type"` // NULLABLE

	UploadedTS time.Time `bigquery:"uploaded_ts"` // REQUIRED
}

type ImportRunRow struct {
	ImportRunID string `bigquery:"import_run_id"` // REQUIRED

	SessionID string `bigquery:"session_id"` // REQUIRED
	UserID    string `bigquery:"user_id"`    // NULLABLE

	Status string `bigquery:"status"` // REQUIRED: RUNNING | SUCCESS | FAILED

	TotalRows      bigquery.NullInt64 `bigquery:"total_rows"`
	SuccessfulRows bigquery.NullInt64 `bigquery:"successful_rows"`
	FailedRows     bigquery.NullInt64 `bigquery:"failed_rows"`

	StartedTS    time.Time              `bigquery:"started_ts"` // REQUIRED
	FinishedTS   bigquery.NullTimestamp `bigquery:"finished_ts"`
	ErrorMessage bigquery.NullString    `bigquery:"error_message"`
}
