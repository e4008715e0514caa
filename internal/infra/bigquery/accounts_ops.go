package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// ListAllAccounts retrieves all accounts from the database.
func ListAllAccounts(ctx context.Context) ([]*AccountRow, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ListAllAccounts: creating client: %w", err)
	}
	defer client.Close()

	return ListAllAccountsWithClient(ctx, client)
}

// ListAllAccountsWithClient retrieves all accounts using the provided BigQuery client.
func ListAllAccountsWithClient(ctx context.Context, client *bigquery.Client) ([]*AccountRow, error) {
	query := fmt.Sprintf(`
		SELECT
			account_id,
			user_id,
			account_name,
			currency,
			balance,
			created_ts,
			updated_ts
		FROM `+"`%s.%s.%s`"+`
		ORDER BY created_ts
	`, projectID, datasetID, accountsTable)

	q := client.Query(query)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAllAccountsWithClient: reading query: %w", err)
	}

	var accounts []*AccountRow
	for {
		var row AccountRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAllAccountsWithClient: iterating: %w", err)
		}
		accounts = append(accounts, &row)
	}

	return accounts, nil
}

// FindAccountByNameWithClient finds an account by case-insensitive name match.
// Returns nil if no matching account is found.
func FindAccountByNameWithClient(ctx context.Context, client *bigquery.Client, name string) (*AccountRow, error) {
	normName := strings.ToUpper(strings.TrimSpace(name))
	if normName == "" {
		return nil, fmt.Errorf("FindAccountByNameWithClient: account name cannot be empty")
	}

	query := fmt.Sprintf(`
		SELECT
			account_id,
			user_id,
			account_name,
			currency,
			balance,
			created_ts,
			updated_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE UPPER(TRIM(account_name)) = @account_name
		ORDER BY created_ts
		LIMIT 1
	`, projectID, datasetID, accountsTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_name", Value: normName},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindAccountByNameWithClient: reading query: %w", err)
	}

	var row AccountRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindAccountByNameWithClient: iterating: %w", err)
	}

	return &row, nil
}

// UpdateAccountBalanceWithClient applies a signed delta to one account's
// balance as a single relative UPDATE. Concurrent imports against the same
// account therefore never lose increments to a read-modify-write race.
func UpdateAccountBalanceWithClient(ctx context.Context, client *bigquery.Client, accountID string, delta *big.Rat) error {
	if accountID == "" {
		return fmt.Errorf("UpdateAccountBalanceWithClient: account ID cannot be empty")
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE `+"`%s.%s.%s`"+`
		SET balance = balance + @delta,
		    updated_ts = CURRENT_TIMESTAMP()
		WHERE account_id = @account_id
	`, projectID, datasetID, accountsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "delta", Value: delta},
		{Name: "account_id", Value: accountID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("UpdateAccountBalanceWithClient: running update query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("UpdateAccountBalanceWithClient: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("UpdateAccountBalanceWithClient: job error: %w", err)
	}

	return nil
}
