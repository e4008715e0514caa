package csvimport

import (
	"fmt"
	"strings"
)

// HeaderField is the semantic transaction attribute a CSV column is assigned
// to. The set is closed: adding a field means extending the switch in the
// validator and the committer, which the compiler will point out.
type HeaderField string

const (
	FieldSkip          HeaderField = "skip"
	FieldDate          HeaderField = "date"
	FieldAccount       HeaderField = "account_id"
	FieldFromAccount   HeaderField = "from_account"
	FieldToAccount     HeaderField = "to_account"
	FieldType          HeaderField = "type"
	FieldCategory      HeaderField = "category"
	FieldAmount        HeaderField = "amount"
	FieldDescription   HeaderField = "description"
	FieldNotes         HeaderField = "notes"
	FieldGoalName      HeaderField = "goal_name"
	FieldDeductionType HeaderField = "deduction_type"
	FieldGoalAmount    HeaderField = "goal_amount"
	FieldFrequency     HeaderField = "frequency"
)

// headerFields is every assignable field, in a stable order for messages.
var headerFields = []HeaderField{
	FieldSkip, FieldDate, FieldAccount, FieldFromAccount, FieldToAccount,
	FieldType, FieldCategory, FieldAmount, FieldDescription, FieldNotes,
	FieldGoalName, FieldDeductionType, FieldGoalAmount, FieldFrequency,
}

// Known reports whether f is a member of the closed field set.
func (f HeaderField) Known() bool {
	for _, k := range headerFields {
		if f == k {
			return true
		}
	}
	return false
}

// mandatoryFields must all be mapped before validation can start. Every
// transaction needs a type, an amount and a date.
var mandatoryFields = []HeaderField{FieldType, FieldAmount, FieldDate}

// Mapping associates CSV column names with header fields. At most one column
// may map to each non-skip field; Set enforces this rather than leaving the
// ambiguity to surface at commit time.
type Mapping map[string]HeaderField

// fieldSynonyms drives auto-detection. Order matters: the first field whose
// synonym list matches a lower-cased header wins, and a field already taken
// by an earlier column is not assigned twice.
var fieldSynonyms = []struct {
	field HeaderField
	names []string
}{
	{FieldDate, []string{"date", "transaction_date", "transaction date", "date_created", "posted", "posting_date"}},
	{FieldType, []string{"type", "transaction_type", "transaction type", "direction"}},
	{FieldAmount, []string{"amount", "value", "sum", "total"}},
	{FieldFromAccount, []string{"from_account", "from account", "from", "source_account", "sender"}},
	{FieldToAccount, []string{"to_account", "to account", "to", "destination_account", "receiver"}},
	{FieldAccount, []string{"account", "account_id", "account_name", "account name"}},
	{FieldCategory, []string{"category", "category_name", "category name"}},
	{FieldDescription, []string{"description", "title", "memo", "payee"}},
	{FieldNotes, []string{"notes", "note", "comment", "comments"}},
	{FieldGoalName, []string{"goal", "goal_name", "goal name"}},
	{FieldDeductionType, []string{"deduction_type", "deduction type", "deduction", "allocation", "allocation_type", "goal_allocation"}},
	{FieldGoalAmount, []string{"goal_amount", "goal amount", "split_amount", "split amount"}},
	{FieldFrequency, []string{"frequency", "recurrence", "repeat"}},
}

// AutoDetect proposes a mapping for the given headers by synonym matching.
// Headers that match nothing, and headers whose field is already taken,
// default to skip; the operator can override any assignment afterwards.
func AutoDetect(headers []string) Mapping {
	mapping := make(Mapping, len(headers))
	used := make(map[HeaderField]bool)

	for _, header := range headers {
		normalized := strings.ToLower(strings.TrimSpace(header))
		mapping[header] = FieldSkip

		for _, syn := range fieldSynonyms {
			if used[syn.field] {
				continue
			}
			for _, name := range syn.names {
				if normalized == name {
					mapping[header] = syn.field
					used[syn.field] = true
					break
				}
			}
			if mapping[header] != FieldSkip {
				break
			}
		}
	}

	return mapping
}

// DuplicateFieldError reports an attempt to assign a field already held by
// another column.
type DuplicateFieldError struct {
	Field  HeaderField
	Column string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("field %q is already mapped to column %q", e.Field, e.Column)
}

// Set assigns a column to a field. Mapping a column to skip vacates its
// previous field, making it available to other columns again.
func (m Mapping) Set(column string, field HeaderField) error {
	if !field.Known() {
		return fmt.Errorf("unknown header field %q", field)
	}
	if _, ok := m[column]; !ok {
		return fmt.Errorf("unknown column %q", column)
	}

	if field != FieldSkip {
		for col, f := range m {
			if col != column && f == field {
				return &DuplicateFieldError{Field: field, Column: col}
			}
		}
	}

	m[column] = field
	return nil
}

// MappingIncompleteError lists the mandatory fields still unmapped. It blocks
// progression from the mapping stage to validation and is fully recoverable
// by adjusting the mapping.
type MappingIncompleteError struct {
	Missing []HeaderField
}

func (e *MappingIncompleteError) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return fmt.Sprintf("mapping incomplete: required fields not mapped: %s", strings.Join(names, ", "))
}

// Complete checks that every mandatory field is mapped to some column.
func (m Mapping) Complete() error {
	var missing []HeaderField
	for _, required := range mandatoryFields {
		found := false
		for _, f := range m {
			if f == required {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, required)
		}
	}

	if len(missing) > 0 {
		return &MappingIncompleteError{Missing: missing}
	}
	return nil
}

// clone returns an independent copy of the mapping.
func (m Mapping) clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
