package results

import (
	"context"
	"fmt"
	"io"
	"time"

	dbutils "tpchbench/dbUtils"
	"tpchbench/session"

	"github.com/lib/pq"
	zlog "github.com/rs/zerolog/log"
)

// Record is the timing of one query execution
type Record struct {
	RunAt     time.Time
	QueryName string
	Duration  float64 // seconds
}

// Store appends benchmark records to the results table and reads them back
type Store struct {
	session *session.Session
	table   string
}

func New(s *session.Session, table string) *Store {
	return &Store{session: s, table: table}
}

// EnsureTable creates the results table unless it already exists.
func (s *Store) EnsureTable(ctx context.Context) error {
	conn := s.session.Conn()

	exists, err := dbutils.TableExists(ctx, conn, s.session.Dialect(), s.table)
	if err != nil {
		return fmt.Errorf("create results table: %w", err)
	}
	if exists {
		return nil
	}

	_, err = conn.ExecContext(ctx, fmt.Sprintf(`create table %s (
		run_datetime timestamp,
		query_name   text,
		duration     numeric
	)`, pq.QuoteIdentifier(s.table)))
	if err != nil {
		return fmt.Errorf("create results table: %w", err)
	}

	zlog.Info().Str("table", s.table).Msg("Results table created")
	return nil
}

// Insert appends one record; every insert commits on its own.
func (s *Store) Insert(ctx context.Context, r Record) error {
	d := s.session.Dialect()
	query := fmt.Sprintf("insert into %s (run_datetime, query_name, duration) values (%s, %s, %s)",
		pq.QuoteIdentifier(s.table), d.Placeholder(1), d.Placeholder(2), d.Placeholder(3))

	if _, err := s.session.Conn().ExecContext(ctx, query, r.RunAt, r.QueryName, r.Duration); err != nil {
		return fmt.Errorf("save results of %s: %w", r.QueryName, err)
	}
	return nil
}

// Record saves the record, so a Store can be handed to the query runner.
func (s *Store) Record(ctx context.Context, r Record) error {
	zlog.Info().Str("query", r.QueryName).Str("table", s.table).Msg("Saving results")
	return s.Insert(ctx, r)
}

// FetchAll returns every saved record in storage order.
func (s *Store) FetchAll(ctx context.Context) ([]Record, error) {
	rows, err := s.session.Conn().QueryContext(ctx,
		"select run_datetime, query_name, duration from "+pq.QuoteIdentifier(s.table))
	if err != nil {
		return nil, fmt.Errorf("fetch results: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.RunAt, &r.QueryName, &r.Duration); err != nil {
			return nil, fmt.Errorf("fetch results: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch results: %w", err)
	}

	return records, nil
}

// Print writes one line per record
func Print(w io.Writer, records []Record) error {
	for _, r := range records {
		if _, err := fmt.Fprintf(w, "%s  %s  %.6f\n", r.RunAt.Format(time.RFC3339Nano), r.QueryName, r.Duration); err != nil {
			return err
		}
	}
	return nil
}
