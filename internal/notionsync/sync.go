package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/budgetbook/budgetbook/internal/domain"
	"github.com/budgetbook/budgetbook/internal/infra/bigquery"
	"github.com/budgetbook/budgetbook/internal/logger"
)

// TransactionSource reads the transactions and account names a sync exports.
type TransactionSource interface {
	QueryTransactions(ctx context.Context, start, end time.Time) ([]*bigquery.TransactionRow, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
}

// SyncTransactions mirrors a date range of transactions into a Notion
// database. Pages are keyed by transaction ID: missing ones are created,
// existing ones are left alone, and pages whose transaction no longer exists
// in the range are archived. With dryRun set, the sync only logs what it
// would do.
func SyncTransactions(ctx context.Context, source TransactionSource, notionClient NotionService, notionDBID string, startDate, endDate time.Time, dryRun bool) error {
	log := logger.FromContext(ctx)

	log.Info().
		Time("start_date", startDate).
		Time("end_date", endDate).
		Bool("dry_run", dryRun).
		Msg("Starting transaction sync to Notion")

	transactions, err := source.QueryTransactions(ctx, startDate, endDate)
	if err != nil {
		return fmt.Errorf("failed to query transactions: %w", err)
	}

	accounts, err := source.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	accountNames := make(map[string]string, len(accounts))
	for _, acc := range accounts {
		accountNames[acc.ID] = acc.Name
	}

	log.Info().Int("transaction_count", len(transactions)).Msg("Retrieved transactions")

	validTransactionIDs := make(map[string]bool, len(transactions))
	for _, tx := range transactions {
		validTransactionIDs[tx.TransactionID] = true
	}

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return fmt.Errorf("failed to query Notion pages: %w", err)
	}

	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	existingTransactionIDs := make(map[string]bool, len(notionPages))
	for _, page := range notionPages {
		if txID := extractTransactionID(page); txID != "" {
			existingTransactionIDs[txID] = true
		}
	}

	var deleted int
	for _, page := range notionPages {
		txID := extractTransactionID(page)
		if txID != "" && validTransactionIDs[txID] {
			continue
		}

		if dryRun {
			log.Info().
				Str("transaction_id", txID).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive stale Notion page")
			deleted++
			continue
		}

		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("transaction_id", txID).
				Str("page_id", string(page.ID)).
				Msg("Failed to archive stale Notion page")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		log.Info().Int("deleted", deleted).Msg("Archived stale transactions in Notion")
	}

	var created, skipped int
	for _, tx := range transactions {
		if existingTransactionIDs[tx.TransactionID] {
			skipped++
			continue
		}

		if dryRun {
			log.Info().
				Str("transaction_id", tx.TransactionID).
				Msg("[DRY RUN] Would create Notion page")
			created++
			continue
		}

		props := TransactionToNotionProperties(tx, accountNames)
		if _, err := notionClient.CreatePage(ctx, notionDBID, props); err != nil {
			log.Warn().
				Err(err).
				Str("transaction_id", tx.TransactionID).
				Msg("Failed to create Notion page")
			continue
		}
		created++
	}

	log.Info().
		Int("created", created).
		Int("skipped", skipped).
		Int("deleted", deleted).
		Msg("Transaction sync to Notion finished")

	return nil
}

// queryAllNotionPages pages through the whole database.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, notionDBID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			StartCursor: cursor,
			PageSize:    100,
		}

		resp, err := notionClient.QueryDatabase(ctx, notionDBID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		pages = append(pages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return pages, nil
}
