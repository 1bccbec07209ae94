package schema

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	dbutils "tpchbench/dbUtils"
	"tpchbench/session"

	zlog "github.com/rs/zerolog/log"
)

// Loader (re)creates the tables defined in a schema file
type Loader struct {
	session *session.Session
}

func New(s *session.Session) *Loader {
	return &Loader{session: s}
}

// Returns the names of the tables created in a schema, in file order. A header line starts
// with "CREATE TABLE" (or "CREATE TABLE IF NOT EXISTS") and the name is the token after it.
func TableNames(r io.Reader) ([]string, error) {
	names := []string{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || !strings.EqualFold(fields[0], "CREATE") || !strings.EqualFold(fields[1], "TABLE") {
			continue
		}

		idx := 2
		if len(fields) > 5 && strings.EqualFold(fields[2], "IF") &&
			strings.EqualFold(fields[3], "NOT") && strings.EqualFold(fields[4], "EXISTS") {
			idx = 5
		}
		if len(fields) <= idx {
			return nil, fmt.Errorf("line %d: no table name after CREATE TABLE", lineNo)
		}

		name := fields[idx]
		if i := strings.IndexByte(name, '('); i >= 0 {
			name = name[:i]
		}
		name = strings.TrimSuffix(name, ";")
		if !dbutils.ValidIdentifier(name) {
			return nil, fmt.Errorf("line %d: invalid table name %q", lineNo, fields[idx])
		}
		names = append(names, name)
	}

	return names, scanner.Err()
}

// Apply drops every table the schema file defines and then runs the whole file, in one
// transaction. Running it again over an existing schema gives the same tables.
func (l *Loader) Apply(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tables, err := TableNames(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create schema: %s: %w", path, err)
	}

	zlog.Info().Str("file", path).Int("tables", len(tables)).Msg("Replacing existing tables")

	tx, err := l.session.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	defer tx.Rollback()

	for _, table := range tables {
		if err := dbutils.DropTableIfExists(ctx, tx, table); err != nil {
			return fmt.Errorf("create schema: drop %s: %w", table, err)
		}
		zlog.Debug().Str("table", table).Msg("Dropped, will be replaced")
	}

	if _, err := tx.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("create schema: %s: %w", path, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	zlog.Info().Strs("tables", tables).Msg("Schema created")
	return nil
}
