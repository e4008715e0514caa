package bigquery

import (
	"context"
	"fmt"
	"math/big"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// ListGoals retrieves all goals from the database.
func ListGoals(ctx context.Context) ([]*GoalRow, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ListGoals: creating client: %w", err)
	}
	defer client.Close()

	return ListGoalsWithClient(ctx, client)
}

// ListGoalsWithClient retrieves all goals using the provided BigQuery client.
func ListGoalsWithClient(ctx context.Context, client *bigquery.Client) ([]*GoalRow, error) {
	query := fmt.Sprintf(`
		SELECT
			goal_id,
			user_id,
			goal_name,
			current_amount,
			target_amount,
			created_ts,
			updated_ts
		FROM `+"`%s.%s.%s`"+`
		ORDER BY created_ts
	`, projectID, datasetID, goalsTable)

	q := client.Query(query)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListGoalsWithClient: reading query: %w", err)
	}

	var goals []*GoalRow
	for {
		var row GoalRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListGoalsWithClient: iterating: %w", err)
		}
		goals = append(goals, &row)
	}

	return goals, nil
}

// GetGoalWithClient retrieves one goal by ID. Returns an error when the goal
// does not exist.
func GetGoalWithClient(ctx context.Context, client *bigquery.Client, goalID string) (*GoalRow, error) {
	if goalID == "" {
		return nil, fmt.Errorf("GetGoalWithClient: goal ID cannot be empty")
	}

	query := fmt.Sprintf(`
		SELECT
			goal_id,
			user_id,
			goal_name,
			current_amount,
			target_amount,
			created_ts,
			updated_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE goal_id = @goal_id
		LIMIT 1
	`, projectID, datasetID, goalsTable)

	q := client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "goal_id", Value: goalID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetGoalWithClient: reading query: %w", err)
	}

	var row GoalRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, fmt.Errorf("GetGoalWithClient: goal not found: %s", goalID)
	}
	if err != nil {
		return nil, fmt.Errorf("GetGoalWithClient: iterating: %w", err)
	}

	return &row, nil
}

// UpdateGoalAmountWithClient sets one goal's current amount.
func UpdateGoalAmountWithClient(ctx context.Context, client *bigquery.Client, goalID string, current *big.Rat) error {
	if goalID == "" {
		return fmt.Errorf("UpdateGoalAmountWithClient: goal ID cannot be empty")
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE `+"`%s.%s.%s`"+`
		SET current_amount = @current_amount,
		    updated_ts = CURRENT_TIMESTAMP()
		WHERE goal_id = @goal_id
	`, projectID, datasetID, goalsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "current_amount", Value: current},
		{Name: "goal_id", Value: goalID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("UpdateGoalAmountWithClient: running update query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("UpdateGoalAmountWithClient: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("UpdateGoalAmountWithClient: job error: %w", err)
	}

	return nil
}
