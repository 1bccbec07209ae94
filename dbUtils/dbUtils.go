package dbutils

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"tpchbench/session"
)

// Querier is the part of *sql.Conn and *sql.Tx the helpers need
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// plain or schema-qualified identifier, as written unquoted in a schema file
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)?$`)

// Reports whether name can be spliced unquoted into a statement
func ValidIdentifier(name string) bool {
	return identifier.MatchString(name)
}

// Returns true if the table exists in the current schema
func TableExists(ctx context.Context, q Querier, d session.Dialect, table string) (bool, error) {
	var exists bool
	if err := q.QueryRowContext(ctx, d.TableExistsQuery(), table).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Returns the column names of a table in definition order; empty if the table does not exist
func TableColumns(ctx context.Context, q Querier, d session.Dialect, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, d.ColumnsQuery(), table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

// The name is left unquoted so it folds the same way as in the CREATE TABLE that defines it
func DropTableIfExists(ctx context.Context, q Querier, table string) error {
	if !ValidIdentifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	_, err := q.ExecContext(ctx, "drop table if exists "+table)
	return err
}

// Refreshes the planner statistics of a table
func Analyze(ctx context.Context, q Querier, table string) error {
	if !ValidIdentifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	_, err := q.ExecContext(ctx, "analyze "+table)
	return err
}
