package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Dialect hides the differences between the supported databases: catalog lookups,
// parameter placeholders, and how rows are bulk loaded.
type Dialect interface {
	// Driver name as registered with database/sql
	Name() string
	// Placeholder for the n-th (1-based) statement parameter
	Placeholder(n int) string
	// Query taking the table name as its only parameter and returning one boolean
	TableExistsQuery() string
	// Query taking the table name as its only parameter and returning the column names in order
	ColumnsQuery() string
	// Statement to prepare inside a transaction; each row is loaded with one Exec
	BulkStatement(table string, columns []string) string
	// Completes a bulk load once every row was sent
	FinishBulk(stmt *sql.Stmt) error
	// Runs a script of one or more statements to completion, reading every row
	Execute(ctx context.Context, conn *sql.Conn, script string) error
}

func dialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres":
		return postgresDialect{}, nil
	case "sqlite3":
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("no dialect for driver %q", driver)
	}
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) TableExistsQuery() string {
	return `select exists (
		select from information_schema.tables
		where table_schema = current_schema() and table_name = $1
	)`
}

func (postgresDialect) ColumnsQuery() string {
	return `select column_name from information_schema.columns
		where table_schema = current_schema() and table_name = $1
		order by ordinal_position`
}

// COPY FROM STDIN
func (postgresDialect) BulkStatement(table string, columns []string) string {
	return pq.CopyIn(table, columns...)
}

// An Exec without arguments flushes the buffered COPY data
func (postgresDialect) FinishBulk(stmt *sql.Stmt) error {
	_, err := stmt.Exec()
	return err
}

// The simple query protocol reads every result row before Exec returns
func (postgresDialect) Execute(ctx context.Context, conn *sql.Conn, script string) error {
	_, err := conn.ExecContext(ctx, script)
	return err
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite3" }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) TableExistsQuery() string {
	return "select exists (select 1 from sqlite_master where type = 'table' and name = ?)"
}

func (sqliteDialect) ColumnsQuery() string {
	return "select name from pragma_table_info(?) order by cid"
}

func (sqliteDialect) BulkStatement(table string, columns []string) string {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pq.QuoteIdentifier(c)
		params[i] = "?"
	}
	return fmt.Sprintf("insert into %s (%s) values (%s)",
		pq.QuoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(params, ", "))
}

func (sqliteDialect) FinishBulk(*sql.Stmt) error { return nil }

// go-sqlite3 steps a statement only once on Exec and runs only the last statement of a
// multi-statement Query, so each statement is queried on its own and drained.
func (sqliteDialect) Execute(ctx context.Context, conn *sql.Conn, script string) error {
	for _, stmt := range SplitStatements(script) {
		rows, err := conn.QueryContext(ctx, stmt)
		if err != nil {
			return err
		}
		for rows.Next() {
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
