// Package bigquery mirrors transactions into a BigQuery dataset for
// analytics and applies the dataset's schema migrations.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const dateFormat = "2006-01-02"

// BigQueryMirror is the concrete implementation of TransactionMirror. It
// holds a shared BigQuery client.
type BigQueryMirror struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQueryMirror creates a mirror with its own client.
func NewBigQueryMirror(ctx context.Context, projectID, datasetID string) (*BigQueryMirror, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryMirror: creating client: %w", err)
	}
	return &BigQueryMirror{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (m *BigQueryMirror) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

func (m *BigQueryMirror) table(name string) string {
	return qualifiedName(m.projectID, m.datasetID, name)
}

// UpsertTransaction implements TransactionMirror with a MERGE statement.
func (m *BigQueryMirror) UpsertTransaction(ctx context.Context, row *TransactionRow) error {
	q := m.client.Query(upsertSQL(m.table(transactionsTable)))
	q.Parameters = upsertParameters(row)

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("UpsertTransaction: %w", err)
	}
	return nil
}

// DeleteTransaction implements TransactionMirror.
func (m *BigQueryMirror) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	q := m.client.Query(`
		DELETE FROM ` + m.table(transactionsTable) + `
		WHERE transaction_id = @transaction_id
		  AND user_id = @user_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: transactionID},
		{Name: "user_id", Value: userID},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	return nil
}

// QueryMonthlyTotals implements TransactionMirror.
func (m *BigQueryMirror) QueryMonthlyTotals(ctx context.Context, userID string, start, end time.Time) ([]*MonthlyTotalRow, error) {
	q := m.client.Query(`
		SELECT month, income, expense, transactions
		FROM ` + m.table(monthlyTotalsView) + `
		WHERE user_id = @user_id
		  AND month >= DATE_TRUNC(@start_date, MONTH)
		  AND month <= @end_date
		ORDER BY month
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "start_date", Value: start.Format(dateFormat)},
		{Name: "end_date", Value: end.Format(dateFormat)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryMonthlyTotals: query read: %w", err)
	}

	var rows []*MonthlyTotalRow
	for {
		var r MonthlyTotalRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryMonthlyTotals: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// upsertSQL merges one parameterised row into table. A row is only replaced
// by a change with a later updated_ts, so redelivered or reordered events
// are harmless. Nullable columns are set through has_date and has_note
// flags rather than typed NULL parameters.
func upsertSQL(table string) string {
	return `
		MERGE ` + table + ` T
		USING (
			SELECT
				@transaction_id AS transaction_id,
				@user_id AS user_id,
				@type AS type,
				@amount AS amount,
				@category AS category,
				IF(@has_note, @note, NULL) AS note,
				IF(@has_date, DATE(@occurred_at), NULL) AS transaction_date,
				IF(@has_date, @occurred_at, NULL) AS occurred_at,
				@created_ts AS created_ts,
				@updated_ts AS updated_ts
		) S
		ON T.transaction_id = S.transaction_id
		WHEN MATCHED AND T.updated_ts <= S.updated_ts THEN
			UPDATE SET
				type = S.type,
				amount = S.amount,
				category = S.category,
				note = S.note,
				transaction_date = S.transaction_date,
				occurred_at = S.occurred_at,
				updated_ts = S.updated_ts
		WHEN NOT MATCHED THEN
			INSERT (transaction_id, user_id, type, amount, category, note,
				transaction_date, occurred_at, created_ts, updated_ts)
			VALUES (S.transaction_id, S.user_id, S.type, S.amount, S.category, S.note,
				S.transaction_date, S.occurred_at, S.created_ts, S.updated_ts)
	`
}

func upsertParameters(row *TransactionRow) []bigquery.QueryParameter {
	occurredAt := row.CreatedTS
	if row.OccurredAt.Valid {
		occurredAt = row.OccurredAt.Timestamp
	}
	return []bigquery.QueryParameter{
		{Name: "transaction_id", Value: row.TransactionID},
		{Name: "user_id", Value: row.UserID},
		{Name: "type", Value: row.Type},
		{Name: "amount", Value: row.Amount},
		{Name: "category", Value: row.Category},
		{Name: "has_note", Value: row.Note.Valid},
		{Name: "note", Value: row.Note.StringVal},
		{Name: "has_date", Value: row.OccurredAt.Valid},
		{Name: "occurred_at", Value: occurredAt},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}
}

// runDML runs q and waits for the job to finish.
func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func qualifiedName(projectID, datasetID, name string) string {
	return fmt.Sprintf("`%s.%s.%s`", projectID, datasetID, name)
}

var _ TransactionMirror = (*BigQueryMirror)(nil)
