package resourcestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultPageSize is the number of rows fetched per underlying page.
const DefaultPageSize = 100

// QueryParams specifies filters for a range query over one partition.
//
// Exactly one of Partition or StatusPartition should be set: Partition walks
// the creation-time index of a resource type, StatusPartition walks the
// status-filtered index.
type QueryParams struct {
	Partition       string
	StatusPartition string

	// From/To bound the creation timestamp. Nil means unbounded.
	From *time.Time
	To   *time.Time

	// Ascending orders results oldest first. Default is newest first.
	Ascending bool

	// Limit caps the number of results. Zero means no limit.
	Limit int

	// PageSize overrides the underlying page size. Zero uses DefaultPageSize.
	PageSize int
}

// Query walks the requested partition in creation-time order, fetching page
// by page until Limit is satisfied or results are exhausted. Keyset
// pagination keeps page boundaries stable under concurrent writes.
func (s *Store) Query(ctx context.Context, params QueryParams) ([]Record, error) {
	if (params.Partition == "") == (params.StatusPartition == "") {
		return nil, fmt.Errorf("query requires exactly one of partition or status partition")
	}

	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	keyCol, keyVal := "partition", params.Partition
	if params.StatusPartition != "" {
		keyCol, keyVal = "status_partition", params.StatusPartition
	}

	order, cmp := "DESC", "<"
	if params.Ascending {
		order, cmp = "ASC", ">"
	}

	var out []Record
	var cursorMs int64
	var cursorID string
	havePage := false

	for {
		query := fmt.Sprintf(`
			SELECT partition, resource_id, status_partition, created_ms, body
			FROM resources
			WHERE %s = ?`, keyCol)
		args := []any{keyVal}

		if params.From != nil {
			query += ` AND created_ms >= ?`
			args = append(args, params.From.UTC().UnixMilli())
		}
		if params.To != nil {
			query += ` AND created_ms <= ?`
			args = append(args, params.To.UTC().UnixMilli())
		}
		if havePage {
			// Continue strictly after the last row of the previous page.
			query += fmt.Sprintf(` AND (created_ms %s ? OR (created_ms = ? AND resource_id %s ?))`, cmp, cmp)
			args = append(args, cursorMs, cursorMs, cursorID)
		}

		query += fmt.Sprintf(` ORDER BY created_ms %s, resource_id %s LIMIT ?`, order, order)
		args = append(args, pageSize)

		page, err := s.queryPage(ctx, query, args)
		if err != nil {
			return nil, err
		}

		for _, rec := range page {
			out = append(out, rec)
			if params.Limit > 0 && len(out) >= params.Limit {
				return out, nil
			}
		}

		if len(page) < pageSize {
			return out, nil
		}
		last := page[len(page)-1]
		cursorMs = last.Created.UTC().UnixMilli()
		cursorID = last.ID
		havePage = true
	}
}

func (s *Store) queryPage(ctx context.Context, query string, args []any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var page []Record
	for rows.Next() {
		var (
			partition       string
			resourceID      string
			statusPartition sql.NullString
			createdMs       int64
			body            string
		)
		if err := rows.Scan(&partition, &resourceID, &statusPartition, &createdMs, &body); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rec := Record{
			Partition: partition,
			ID:        resourceID,
			Body:      json.RawMessage(body),
		}
		if statusPartition.Valid {
			rec.StatusPartition = statusPartition.String
		}
		if createdMs > 0 {
			rec.Created = time.UnixMilli(createdMs).UTC()
		}
		page = append(page, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return page, nil
}
