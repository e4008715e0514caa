package csvimport

import (
	"strings"

	"github.com/budgetbook/budgetbook/internal/domain"
)

// ParsedRow maps an original CSV column name to the raw cell value for one
// data line. Column order lives in ParseResult.Headers; the row itself is
// never mutated after parsing.
type ParsedRow map[string]string

// ParseResult is the rectangular grid produced by Parse.
type ParseResult struct {
	Headers []string
	Rows    []ParsedRow

	// Warning is set when the input was usable but degraded, e.g. truncated
	// to the row cap.
	Warning string
}

// ValidationError is one field-level problem on one row.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"row_value,omitempty"`
}

// ImportRow is the mutable working state for one parsed row: the original
// cells, the operator's edits, the latest validation outcome, and whether the
// row is slated for commit.
type ImportRow struct {
	// Line is the 1-based data row number, used to key errors in reports.
	Line int `json:"line"`

	Original ParsedRow         `json:"original"`
	Values   map[string]string `json:"values"`

	Errors   []ValidationError `json:"errors,omitempty"`
	Included bool              `json:"included"`
}

// Valid reports whether the last validation run found no problems.
func (r *ImportRow) Valid() bool {
	return len(r.Errors) == 0
}

// ReferenceSnapshot is a point-in-time view of the external entities rows are
// resolved against. It is read once per import session and never refreshed.
type ReferenceSnapshot struct {
	Accounts   []domain.Account
	Categories []domain.Category
	Goals      []domain.Goal
}

// FindAccount resolves an account by case-insensitive exact name match.
func (s *ReferenceSnapshot) FindAccount(name string) *domain.Account {
	for i := range s.Accounts {
		if strings.EqualFold(strings.TrimSpace(name), s.Accounts[i].Name) {
			return &s.Accounts[i]
		}
	}
	return nil
}

// FindCategory resolves a category by case-insensitive name match, filtered
// by transaction type: an income category never satisfies an expense row.
func (s *ReferenceSnapshot) FindCategory(name string, txType domain.TransactionType) *domain.Category {
	for i := range s.Categories {
		if s.Categories[i].Type != txType {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), s.Categories[i].Name) {
			return &s.Categories[i]
		}
	}
	return nil
}

// CategoryExists reports whether a category with the name exists under any
// type. Used to tell "unknown category" apart from "wrong type".
func (s *ReferenceSnapshot) CategoryExists(name string) bool {
	for i := range s.Categories {
		if strings.EqualFold(strings.TrimSpace(name), s.Categories[i].Name) {
			return true
		}
	}
	return false
}

// FindGoal resolves a goal by case-insensitive exact name match.
func (s *ReferenceSnapshot) FindGoal(name string) *domain.Goal {
	for i := range s.Goals {
		if strings.EqualFold(strings.TrimSpace(name), s.Goals[i].Name) {
			return &s.Goals[i]
		}
	}
	return nil
}

// AccountNames returns the account names in snapshot order, for error
// messages that help the operator self-correct.
func (s *ReferenceSnapshot) AccountNames() []string {
	names := make([]string, 0, len(s.Accounts))
	for i := range s.Accounts {
		names = append(names, s.Accounts[i].Name)
	}
	return names
}

// RowError ties a commit failure back to the original 1-based row number.
type RowError struct {
	RowIndex int    `json:"row_index"`
	Message  string `json:"message"`
}

// ImportResult is the immutable outcome of one commit invocation.
type ImportResult struct {
	Success           bool       `json:"success"`
	SuccessfulImports int        `json:"successful_imports"`
	FailedImports     int        `json:"failed_imports"`
	Errors            []RowError `json:"errors,omitempty"`
	Summary           string     `json:"summary"`
}

// SampleCSV is a downloadable template matching the auto-detected column
// layout. Transfer rows leave account/category empty and use the from/to
// columns instead.
const SampleCSV = `Type,Title,Amount,Transaction Date,Account,Category,From Account,To Account,Frequency,Notes
expense,Weekly groceries,54.20,2025-01-10,Checking,Groceries,,,none,
income,January salary,2500.00,2025-01-01,Checking,Salary,,,monthly,
transfer,Savings top-up,200.00,2025-01-02,,,Checking,Savings,none,
`

// Stats summarizes a session for the UI: the commit step depends on these
// counts agreeing with its own included-and-valid filter.
type Stats struct {
	Total    int `json:"total"`
	Valid    int `json:"valid"`
	Invalid  int `json:"invalid"`
	Included int `json:"included"`
}
