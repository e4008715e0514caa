package csvimport

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/budgetbook/budgetbook/internal/domain"
)

// acceptedDateFormats are tried in order; the first is canonical.
var acceptedDateFormats = []string{
	"2006-01-02",
	"01-02-2006",
	"01/02/2006",
	"2006/01/02",
}

// transactionTypeSynonyms is the single lookup table for type normalization.
// Cases are exhaustive and non-overlapping; a bare "transfer" from the simple
// import surfaces normalizes to the sender tag, which the committer expands
// into the sender/receiver pair.
var transactionTypeSynonyms = map[string]domain.TransactionType{
	"income":            domain.TypeIncome,
	"expense":           domain.TypeExpense,
	"transfer":          domain.TypeTransferSender,
	"transfer-sender":   domain.TypeTransferSender,
	"transfer sender":   domain.TypeTransferSender,
	"transfer_sender":   domain.TypeTransferSender,
	"transfer-receiver": domain.TypeTransferReceiver,
	"transfer receiver": domain.TypeTransferReceiver,
	"transfer_receiver": domain.TypeTransferReceiver,
}

// NormalizeTransactionType resolves a raw CSV type value to its canonical
// tag. The boolean is false for anything outside the accepted set.
func NormalizeTransactionType(raw string) (domain.TransactionType, bool) {
	t, ok := transactionTypeSynonyms[strings.ToLower(strings.TrimSpace(raw))]
	return t, ok
}

var frequencySynonyms = map[string]domain.Frequency{
	"none":    domain.FrequencyNone,
	"daily":   domain.FrequencyDaily,
	"weekly":  domain.FrequencyWeekly,
	"monthly": domain.FrequencyMonthly,
	"yearly":  domain.FrequencyYearly,
	"annual":  domain.FrequencyYearly,
}

// NormalizeFrequency resolves a raw frequency value. An empty value means
// FrequencyNone; an unknown value is an error, never silently coerced.
func NormalizeFrequency(raw string) (domain.Frequency, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return domain.FrequencyNone, true
	}
	f, ok := frequencySynonyms[trimmed]
	return f, ok
}

var allocationSynonyms = map[string]domain.AllocationType{
	"full":  domain.AllocationFull,
	"split": domain.AllocationSplit,
}

// NormalizeAllocation resolves a raw deduction/allocation type value.
func NormalizeAllocation(raw string) (domain.AllocationType, bool) {
	a, ok := allocationSynonyms[strings.ToLower(strings.TrimSpace(raw))]
	return a, ok
}

// parseRowDate parses a date value under the accepted format set.
func parseRowDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range acceptedDateFormats {
		if d, err := time.Parse(layout, trimmed); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// extractField returns the row value for a mapped field. Headers are walked
// in column order so that, if two columns ever map to the same field, the
// last one deterministically wins.
func extractField(headers []string, mapping Mapping, values map[string]string, field HeaderField) string {
	var out string
	for _, h := range headers {
		if mapping[h] == field {
			out = strings.TrimSpace(values[h])
		}
	}
	return out
}

// fieldMapped reports whether any column is assigned to the field.
func fieldMapped(mapping Mapping, field HeaderField) bool {
	for _, f := range mapping {
		if f == field {
			return true
		}
	}
	return false
}

// Validator checks mapped rows against a reference snapshot. It is a pure
// function of its inputs: no mutation, no I/O, and validating the same row
// twice yields the same error list.
type Validator struct {
	headers []string
	mapping Mapping
	ref     *ReferenceSnapshot
	now     func() time.Time
}

// NewValidator builds a validator over one session's headers, mapping and
// snapshot.
func NewValidator(headers []string, mapping Mapping, ref *ReferenceSnapshot) *Validator {
	return &Validator{headers: headers, mapping: mapping, ref: ref, now: time.Now}
}

var hundred = decimal.NewFromInt(100)

// hasTwoDecimalsAtMost checks the 2-decimal-place money invariant.
func hasTwoDecimalsAtMost(d decimal.Decimal) bool {
	scaled := d.Mul(hundred)
	return scaled.Equal(scaled.Floor())
}

// Validate runs every rule against one row's working values and returns the
// field-level errors found. An empty result means the row is valid.
func (v *Validator) Validate(values map[string]string) []ValidationError {
	var errs []ValidationError

	addErr := func(field HeaderField, msg, value string) {
		errs = append(errs, ValidationError{Field: string(field), Message: msg, Value: value})
	}

	// Date. The transaction log is historical only, so future dates are
	// rejected along with unparseable ones.
	rawDate := extractField(v.headers, v.mapping, values, FieldDate)
	if rawDate == "" {
		addErr(FieldDate, "date is required", rawDate)
	} else if date, err := parseRowDate(rawDate); err != nil {
		addErr(FieldDate, fmt.Sprintf("unrecognized date %q; expected YYYY-MM-DD", rawDate), rawDate)
	} else {
		now := v.now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if date.After(today) {
			addErr(FieldDate, fmt.Sprintf("date %q is in the future", rawDate), rawDate)
		}
	}

	// Amount. Always positive in the CSV; sign is decided by type at commit.
	var amount decimal.Decimal
	amountOK := false
	rawAmount := extractField(v.headers, v.mapping, values, FieldAmount)
	if rawAmount == "" {
		addErr(FieldAmount, "amount is required", rawAmount)
	} else if parsed, err := decimal.NewFromString(rawAmount); err != nil {
		addErr(FieldAmount, fmt.Sprintf("amount %q is not a number", rawAmount), rawAmount)
	} else if !parsed.IsPositive() {
		addErr(FieldAmount, "amount must be greater than zero", rawAmount)
	} else if !hasTwoDecimalsAtMost(parsed) {
		addErr(FieldAmount, fmt.Sprintf("amount %q has more than 2 decimal places", rawAmount), rawAmount)
	} else {
		amount = parsed
		amountOK = true
	}

	// Type.
	var txType domain.TransactionType
	typeOK := false
	rawType := extractField(v.headers, v.mapping, values, FieldType)
	if rawType == "" {
		addErr(FieldType, "type is required", rawType)
	} else if normalized, ok := NormalizeTransactionType(rawType); !ok {
		addErr(FieldType, fmt.Sprintf("type %q must be one of INCOME, EXPENSE, TRANSFER", rawType), rawType)
	} else {
		txType = normalized
		typeOK = true
	}

	if typeOK && txType.IsTransfer() {
		v.validateTransferAccounts(values, addErr)
	} else if typeOK {
		v.validateAccount(values, addErr)
		v.validateCategory(values, txType, addErr)
		v.validateGoal(values, txType, amount, amountOK, addErr)
	}

	rawFrequency := extractField(v.headers, v.mapping, values, FieldFrequency)
	if _, ok := NormalizeFrequency(rawFrequency); !ok {
		addErr(FieldFrequency,
			fmt.Sprintf("frequency %q must be one of none, daily, weekly, monthly, yearly", rawFrequency), rawFrequency)
	}

	return errs
}

func (v *Validator) validateAccount(values map[string]string, addErr func(HeaderField, string, string)) {
	raw := extractField(v.headers, v.mapping, values, FieldAccount)
	if raw == "" {
		addErr(FieldAccount, "account is required", raw)
		return
	}
	if v.ref.FindAccount(raw) == nil {
		addErr(FieldAccount,
			fmt.Sprintf("account %q not found; available accounts: %s",
				raw, strings.Join(v.ref.AccountNames(), ", ")), raw)
	}
}

func (v *Validator) validateTransferAccounts(values map[string]string, addErr func(HeaderField, string, string)) {
	from := extractField(v.headers, v.mapping, values, FieldFromAccount)
	to := extractField(v.headers, v.mapping, values, FieldToAccount)

	if from == "" {
		addErr(FieldFromAccount, "transfer requires a source account", from)
	} else if v.ref.FindAccount(from) == nil {
		addErr(FieldFromAccount,
			fmt.Sprintf("account %q not found; available accounts: %s",
				from, strings.Join(v.ref.AccountNames(), ", ")), from)
	}

	if to == "" {
		addErr(FieldToAccount, "transfer requires a destination account", to)
	} else if v.ref.FindAccount(to) == nil {
		addErr(FieldToAccount,
			fmt.Sprintf("account %q not found; available accounts: %s",
				to, strings.Join(v.ref.AccountNames(), ", ")), to)
	}

	if from != "" && to != "" && strings.EqualFold(strings.TrimSpace(from), strings.TrimSpace(to)) {
		addErr(FieldToAccount, "transfer source and destination accounts must differ", to)
	}
}

func (v *Validator) validateCategory(values map[string]string, txType domain.TransactionType, addErr func(HeaderField, string, string)) {
	raw := extractField(v.headers, v.mapping, values, FieldCategory)
	if raw == "" {
		return
	}
	if v.ref.FindCategory(raw, txType) != nil {
		return
	}
	if v.ref.CategoryExists(raw) {
		addErr(FieldCategory,
			fmt.Sprintf("category %q is not valid for %s transactions", raw, txType), raw)
	} else {
		addErr(FieldCategory, fmt.Sprintf("category %q not found", raw), raw)
	}
}

func (v *Validator) validateGoal(values map[string]string, txType domain.TransactionType, amount decimal.Decimal, amountOK bool, addErr func(HeaderField, string, string)) {
	rawGoal := extractField(v.headers, v.mapping, values, FieldGoalName)
	rawAllocation := extractField(v.headers, v.mapping, values, FieldDeductionType)

	// Goal and allocation type are coupled: one without the other is an
	// error in either direction.
	if rawGoal == "" && rawAllocation == "" {
		return
	}
	if rawGoal == "" {
		addErr(FieldGoalName, "deduction type given without a goal name", rawGoal)
		return
	}
	if rawAllocation == "" {
		addErr(FieldDeductionType, "goal name given without a deduction type", rawAllocation)
		return
	}

	goal := v.ref.FindGoal(rawGoal)
	if goal == nil {
		addErr(FieldGoalName, fmt.Sprintf("goal %q not found", rawGoal), rawGoal)
	}

	allocation, ok := NormalizeAllocation(rawAllocation)
	if !ok {
		addErr(FieldDeductionType,
			fmt.Sprintf("deduction type %q must be full or split", rawAllocation), rawAllocation)
		return
	}

	if allocation != domain.AllocationSplit {
		return
	}

	rawGoalAmount := extractField(v.headers, v.mapping, values, FieldGoalAmount)
	if rawGoalAmount == "" {
		addErr(FieldGoalAmount, "split deduction requires a goal amount", rawGoalAmount)
		return
	}

	goalAmount, err := decimal.NewFromString(rawGoalAmount)
	if err != nil || !goalAmount.IsPositive() {
		addErr(FieldGoalAmount,
			fmt.Sprintf("goal amount %q must be a positive number", rawGoalAmount), rawGoalAmount)
		return
	}
	if amountOK && goalAmount.GreaterThan(amount) {
		addErr(FieldGoalAmount, "goal amount exceeds the transaction amount", rawGoalAmount)
	}
	if goal != nil && txType == domain.TypeExpense && goalAmount.GreaterThan(goal.CurrentAmount) {
		addErr(FieldGoalAmount,
			fmt.Sprintf("goal amount exceeds the current amount of goal %q", goal.Name), rawGoalAmount)
	}
}
