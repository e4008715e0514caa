package csvimport

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_CommaDelimited(t *testing.T) {
	input := "Date,Amount,Description\n2025-01-15,12.50,Coffee\n2025-01-16,3.00,Bus\n"

	result, err := Parse(input, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Amount", "Description"}, result.Headers)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "12.50", result.Rows[0]["Amount"])
	assert.Equal(t, "Bus", result.Rows[1]["Description"])
	assert.Empty(t, result.Warning)
}

func TestParse_SemicolonDelimited(t *testing.T) {
	input := "Date;Amount\n2025-01-15;12.50\n"

	result, err := Parse(input, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Amount"}, result.Headers)
	assert.Equal(t, "12.50", result.Rows[0]["Amount"])
}

func TestParse_SemicolonIgnoredWhenCommaPresent(t *testing.T) {
	input := "Date,Note;extra\n2025-01-15,hello;world\n"

	result, err := Parse(input, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Note;extra"}, result.Headers)
	assert.Equal(t, "hello;world", result.Rows[0]["Note;extra"])
}

func TestParse_QuotedDelimiter(t *testing.T) {
	input := "Date,Description\n2025-01-15,\"Lunch, with team\"\n"

	result, err := Parse(input, true)
	require.NoError(t, err)
	assert.Equal(t, "Lunch, with team", result.Rows[0]["Description"])
}

func TestParse_TrimsWhitespaceInsideQuotes(t *testing.T) {
	input := "Date,Description\n2025-01-15,\"  padded, note  \"\n"

	result, err := Parse(input, true)
	require.NoError(t, err)
	assert.Equal(t, "padded, note", result.Rows[0]["Description"])
}

func TestParse_UnterminatedQuoteTolerated(t *testing.T) {
	input := "Date,Description\n2025-01-15,\"half open\n"

	result, err := Parse(input, true)
	require.NoError(t, err)
	assert.Equal(t, "half open", result.Rows[0]["Description"])
}

func TestParse_NoHeaderSynthesizesColumns(t *testing.T) {
	input := "2025-01-15,12.50,Coffee\n2025-01-16,3.00,Bus\n"

	result, err := Parse(input, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"Col 1", "Col 2", "Col 3"}, result.Headers)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Coffee", result.Rows[0]["Col 3"])
}

func TestParse_SkipsBlankAndAllEmptyRows(t *testing.T) {
	input := "Date,Amount\n\n2025-01-15,12.50\n   \n,\n2025-01-16,3.00\n"

	result, err := Parse(input, true)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
}

func TestParse_ShortRowPaddedToHeaderWidth(t *testing.T) {
	input := "Date,Amount,Description\n2025-01-15,12.50\n"

	result, err := Parse(input, true)
	require.NoError(t, err)
	assert.Equal(t, "", result.Rows[0]["Description"])
}

func TestParse_CRLF(t *testing.T) {
	input := "Date,Amount\r\n2025-01-15,12.50\r\n"

	result, err := Parse(input, true)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
}

func TestParse_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\n"} {
		_, err := Parse(input, true)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}
}

func TestParse_RowCapWithWarning(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Date,Amount\n")
	for i := 0; i < MaxRows+25; i++ {
		fmt.Fprintf(&sb, "2025-01-15,%d.00\n", i+1)
	}

	result, err := Parse(sb.String(), true)
	require.NoError(t, err)

	assert.Len(t, result.Rows, MaxRows)
	assert.Contains(t, result.Warning, fmt.Sprintf("%d data rows", MaxRows+25))
	assert.Contains(t, result.Warning, fmt.Sprintf("first %d", MaxRows))
}
