package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/budgetbook/budgetbook/internal/infra/bigquery"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

// TransactionToNotionProperties converts a transaction row to Notion
// properties. accountNames maps account IDs to display names; an unknown ID
// falls back to the raw ID so the page is still traceable.
func TransactionToNotionProperties(tx *bigquery.TransactionRow, accountNames map[string]string) notionapi.Properties {
	props := notionapi.Properties{
		"Transaction ID": notionapi.TitleProperty{
			Title: richText(tx.TransactionID),
		},
	}

	// Date
	d := notionapi.Date(time.Date(
		tx.TransactionDate.Year,
		time.Month(tx.TransactionDate.Month),
		tx.TransactionDate.Day,
		0, 0, 0, 0, time.UTC,
	))
	props["Date"] = notionapi.DateProperty{
		Date: &notionapi.DateObject{Start: &d},
	}

	// Amount
	if tx.Amount != nil {
		amount, _ := tx.Amount.Float64()
		props["Amount"] = notionapi.NumberProperty{Number: amount}
	}

	// Currency
	if tx.Currency != "" {
		props["Currency"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Currency},
		}
	}

	// Type
	if tx.TransactionType != "" {
		props["Type"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.TransactionType},
		}
	}

	// Account
	if tx.AccountID != "" {
		name := accountNames[tx.AccountID]
		if name == "" {
			name = tx.AccountID
		}
		props["Account"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: name},
		}
	}

	// Description
	if tx.Description != "" {
		props["Description"] = notionapi.RichTextProperty{
			RichText: richText(tx.Description),
		}
	}

	// Notes
	if tx.Notes != "" {
		props["Notes"] = notionapi.RichTextProperty{
			RichText: richText(tx.Notes),
		}
	}

	// Frequency
	if tx.Frequency != "" && tx.Frequency != "none" {
		props["Frequency"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Frequency},
		}
	}

	// Transfer Group
	if tx.TransferGroupID != "" {
		props["Transfer Group"] = notionapi.RichTextProperty{
			RichText: richText(tx.TransferGroupID),
		}
	}

	return props
}

// extractTransactionID reads the Transaction ID title off a Notion page,
// empty when the page has no usable title.
func extractTransactionID(page notionapi.Page) string {
	prop, ok := page.Properties["Transaction ID"]
	if !ok {
		return ""
	}
	title, ok := prop.(*notionapi.TitleProperty)
	if !ok || len(title.Title) == 0 {
		return ""
	}
	return title.Title[0].PlainText
}
