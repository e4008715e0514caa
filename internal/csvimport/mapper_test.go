package csvimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoDetect(t *testing.T) {
	headers := []string{"Type", "Title", "Amount", "Transaction Date", "Account", "Category", "From Account", "To Account", "Frequency", "Notes"}

	mapping := AutoDetect(headers)

	assert.Equal(t, FieldType, mapping["Type"])
	assert.Equal(t, FieldDescription, mapping["Title"])
	assert.Equal(t, FieldAmount, mapping["Amount"])
	assert.Equal(t, FieldDate, mapping["Transaction Date"])
	assert.Equal(t, FieldAccount, mapping["Account"])
	assert.Equal(t, FieldCategory, mapping["Category"])
	assert.Equal(t, FieldFromAccount, mapping["From Account"])
	assert.Equal(t, FieldToAccount, mapping["To Account"])
	assert.Equal(t, FieldFrequency, mapping["Frequency"])
	assert.Equal(t, FieldNotes, mapping["Notes"])
}

func TestAutoDetect_UnknownHeaderSkipped(t *testing.T) {
	mapping := AutoDetect([]string{"Date", "Mystery Column"})

	assert.Equal(t, FieldDate, mapping["Date"])
	assert.Equal(t, FieldSkip, mapping["Mystery Column"])
}

func TestAutoDetect_DuplicateSynonymTakenOnce(t *testing.T) {
	mapping := AutoDetect([]string{"Amount", "Value"})

	assert.Equal(t, FieldAmount, mapping["Amount"])
	assert.Equal(t, FieldSkip, mapping["Value"])
}

func TestAutoDetect_FromBeatsAccount(t *testing.T) {
	mapping := AutoDetect([]string{"From", "To", "Account"})

	assert.Equal(t, FieldFromAccount, mapping["From"])
	assert.Equal(t, FieldToAccount, mapping["To"])
	assert.Equal(t, FieldAccount, mapping["Account"])
}

func TestMappingSet(t *testing.T) {
	mapping := AutoDetect([]string{"Date", "Mystery Column"})

	require.NoError(t, mapping.Set("Mystery Column", FieldAmount))
	assert.Equal(t, FieldAmount, mapping["Mystery Column"])

	err := mapping.Set("Date", FieldAmount)
	var dup *DuplicateFieldError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, FieldAmount, dup.Field)
	assert.Equal(t, "Mystery Column", dup.Column)

	// Vacating via skip frees the field again.
	require.NoError(t, mapping.Set("Mystery Column", FieldSkip))
	require.NoError(t, mapping.Set("Date", FieldAmount))
}

func TestMappingSet_UnknownInputs(t *testing.T) {
	mapping := AutoDetect([]string{"Date"})

	assert.Error(t, mapping.Set("Date", HeaderField("bogus")))
	assert.Error(t, mapping.Set("No Such Column", FieldDate))
}

func TestMappingComplete(t *testing.T) {
	mapping := AutoDetect([]string{"Type", "Amount", "Date"})
	assert.NoError(t, mapping.Complete())

	require.NoError(t, mapping.Set("Amount", FieldSkip))
	err := mapping.Complete()
	var incomplete *MappingIncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []HeaderField{FieldAmount}, incomplete.Missing)
	assert.Contains(t, err.Error(), "amount")
}
