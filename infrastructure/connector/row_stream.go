package connectorimpl

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/piimap/piimap/domain/connector"
)

// rowIDColumns are checked in order when deriving a record's row ID.
var rowIDColumns = []string{"id", "uuid", "pk"}

// rowStream iterates a table's rows and fans every column value out as a
// record. The underlying cursor stays open between Next calls.
type rowStream struct {
	rows      *sql.Rows
	columns   []string
	container string
	batchSize int
	rowIDIdx  int
}

// openRowStream executes the query and wraps the resulting cursor.
func openRowStream(query *gorm.DB, container string, batchSize int) (connector.Stream, error) {
	rows, err := query.Rows()
	if err != nil {
		return nil, fmt.Errorf("open cursor on %s: %w", container, err)
	}
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("read columns of %s: %w", container, err)
	}

	rowIDIdx := -1
	for _, candidate := range rowIDColumns {
		for i, col := range columns {
			if col == candidate {
				rowIDIdx = i
				break
			}
		}
		if rowIDIdx >= 0 {
			break
		}
	}

	if batchSize <= 0 {
		batchSize = 1
	}
	return &rowStream{
		rows:      rows,
		columns:   columns,
		container: container,
		batchSize: batchSize,
		rowIDIdx:  rowIDIdx,
	}, nil
}

// Next returns records for up to batchSize rows. An empty batch with a nil
// error means the cursor is exhausted.
func (s *rowStream) Next(ctx context.Context) ([]connector.Record, error) {
	var batch []connector.Record
	for consumed := 0; consumed < s.batchSize; consumed++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.rows.Next() {
			if err := s.rows.Err(); err != nil {
				return nil, fmt.Errorf("iterate %s: %w", s.container, err)
			}
			break
		}

		values := make([]any, len(s.columns))
		pointers := make([]any, len(s.columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := s.rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scan row of %s: %w", s.container, err)
		}

		rowID := ""
		if s.rowIDIdx >= 0 {
			rowID = valueText(values[s.rowIDIdx])
		}
		for i, value := range values {
			text := valueText(value)
			if text == "" {
				continue
			}
			batch = append(batch, connector.NewRecord(s.container, s.columns[i], text, rowID))
		}
	}
	return batch, nil
}

// Close releases the cursor.
func (s *rowStream) Close() error {
	return s.rows.Close()
}

// valueText renders a scanned column value as text.
func valueText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// emptyStream is an exhausted stream, used when a target cannot answer a
// query but the absence of results is not an error.
type emptyStream struct{}

func (emptyStream) Next(_ context.Context) ([]connector.Record, error) { return nil, nil }
func (emptyStream) Close() error                                       { return nil }
