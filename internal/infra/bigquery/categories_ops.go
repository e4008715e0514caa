package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// ListActiveCategories retrieves all active categories from the database.
func ListActiveCategories(ctx context.Context) ([]CategoryRow, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ListActiveCategories: creating client: %w", err)
	}
	defer client.Close()

	return ListActiveCategoriesWithClient(ctx, client)
}

// ListActiveCategoriesWithClient retrieves all active categories using the
// provided BigQuery client. A null is_active counts as active.
func ListActiveCategoriesWithClient(ctx context.Context, client *bigquery.Client) ([]CategoryRow, error) {
	query := fmt.Sprintf(`
		SELECT
			category_id,
			user_id,
			category_name,
			category_type,
			is_active,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE is_active IS NULL OR is_active = TRUE
		ORDER BY category_type, category_name
	`, projectID, datasetID, categoriesTable)

	q := client.Query(query)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListActiveCategoriesWithClient: reading query: %w", err)
	}

	var categories []CategoryRow
	for {
		var row CategoryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListActiveCategoriesWithClient: iterating: %w", err)
		}
		categories = append(categories, row)
	}

	return categories, nil
}
