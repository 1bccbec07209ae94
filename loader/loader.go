package loader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	dbutils "tpchbench/dbUtils"
	"tpchbench/session"
	"tpchbench/util"

	zlog "github.com/rs/zerolog/log"
)

// Field value loaded as NULL
const nullField = `\N`

type Options struct {
	Ext       string // data file extension, e.g. ".tbl"
	Delimiter string // field separator, e.g. "|"
	Analyze   bool   // refresh table statistics after each file
}

// Loader copies delimited data files into the tables named after them
type Loader struct {
	session *session.Session
	opts    Options
}

func New(s *session.Session, opts Options) *Loader {
	return &Loader{session: s, opts: opts}
}

// Load loads every data file in dir, in name order, committing after each file.
// Returns the number of files loaded; files committed before a failure stay loaded.
func (l *Loader) Load(ctx context.Context, dir string) (int, error) {
	files, err := util.ListFiles(dir, l.opts.Ext)
	if err != nil {
		return 0, fmt.Errorf("load data: %w", err)
	}

	zlog.Info().Str("dir", dir).Int("files", len(files)).Msg("Loading data")

	for i, file := range files {
		if _, err := l.LoadFile(ctx, file); err != nil {
			return i, fmt.Errorf("load data: %w", err)
		}
	}

	return len(files), nil
}

// LoadFile loads one data file into the table named by its stem, in one transaction.
func (l *Loader) LoadFile(ctx context.Context, path string) (int64, error) {
	table := util.TrimExt(path)
	conn := l.session.Conn()
	dialect := l.session.Dialect()

	columns, err := dbutils.TableColumns(ctx, conn, dialect, table)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("no table %q for data file %s", table, filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, dialect.BulkStatement(table, columns))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	defer stmt.Close()

	var rows int64
	reader := bufio.NewReaderSize(f, 1024*1024)
	for lineNo := 1; ; lineNo++ {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return rows, readErr
		}

		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			values, err := l.splitRow(line, len(columns))
			if err != nil {
				return rows, fmt.Errorf("%s:%d: %w", filepath.Base(path), lineNo, err)
			}
			if _, err := stmt.ExecContext(ctx, values...); err != nil {
				return rows, fmt.Errorf("%s:%d: %w", filepath.Base(path), lineNo, err)
			}
			rows++
		}

		if readErr != nil {
			break
		}
	}

	if err := dialect.FinishBulk(stmt); err != nil {
		return rows, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := stmt.Close(); err != nil {
		return rows, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := tx.Commit(); err != nil {
		return rows, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	zlog.Info().Str("file", filepath.Base(path)).Str("table", table).Int64("rows", rows).Msg("Loaded")

	if l.opts.Analyze {
		if err := dbutils.Analyze(ctx, conn, table); err != nil {
			return rows, fmt.Errorf("analyze %s: %w", table, err)
		}
	}

	return rows, nil
}

// Splits a line into one value per column. dbgen ends every line with the delimiter,
// so one trailing empty field is dropped.
func (l *Loader) splitRow(line string, columns int) ([]any, error) {
	fields := strings.Split(line, l.opts.Delimiter)
	if len(fields) == columns+1 && fields[columns] == "" {
		fields = fields[:columns]
	}
	if len(fields) != columns {
		return nil, fmt.Errorf("expected %d fields, got %d", columns, len(fields))
	}

	values := make([]any, columns)
	for i, f := range fields {
		if f == nullField {
			values[i] = nil
		} else {
			values[i] = f
		}
	}
	return values, nil
}
