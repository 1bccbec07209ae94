package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tpchbench/config"
	"tpchbench/results"
	"tpchbench/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *session.Session {
	t.Helper()
	cfg := config.Default()
	cfg.Driver = "sqlite3"
	cfg.Database = ":memory:"
	s, err := session.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Conn().ExecContext(context.Background(), `
		create table lineitem (l_orderkey integer, l_quantity numeric);
		insert into lineitem values (1, 17), (1, 36), (2, 8);
	`)
	require.NoError(t, err)
	return s
}

func queryDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"q1.sql":     "select l_orderkey, sum(l_quantity) from lineitem group by l_orderkey;",
		"q6.sql":     "select count(*) from lineitem where l_quantity < 24;",
		"q15.sql":    "create view revenue0 as select l_orderkey from lineitem; select * from revenue0; drop view revenue0;",
		"README.txt": "not a query",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func resultCount(t *testing.T, s *session.Session) int {
	t.Helper()
	var n int
	require.NoError(t, s.Conn().QueryRowContext(context.Background(), "select count(*) from tpch_results").Scan(&n))
	return n
}

func TestRun_Print(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	store := results.New(s, "tpch_results")
	require.NoError(t, store.EnsureTable(ctx))

	var out bytes.Buffer
	n, err := New(s, ".sql", &Printer{Out: &out}).Run(ctx, queryDir(t))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	// name order
	assert.True(t, strings.HasPrefix(lines[0], "Query q1.sql executed in - "))
	assert.True(t, strings.HasPrefix(lines[1], "Query q15.sql executed in - "))
	assert.True(t, strings.HasPrefix(lines[2], "Query q6.sql executed in - "))
	for _, l := range lines {
		assert.True(t, strings.HasSuffix(l, " seconds"), l)
	}

	assert.Equal(t, 0, resultCount(t, s))
}

func TestRun_Persist(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	store := results.New(s, "tpch_results")
	require.NoError(t, store.EnsureTable(ctx))

	n, err := New(s, ".sql", store).Run(ctx, queryDir(t))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, resultCount(t, s))

	records, err := store.FetchAll(ctx)
	require.NoError(t, err)
	names := []string{}
	for _, r := range records {
		names = append(names, r.QueryName)
		assert.GreaterOrEqual(t, r.Duration, 0.0)
		assert.False(t, r.RunAt.IsZero())
	}
	assert.Equal(t, []string{"q1.sql", "q15.sql", "q6.sql"}, names)

	// a second run appends
	_, err = New(s, ".sql", store).Run(ctx, queryDir(t))
	require.NoError(t, err)
	assert.Equal(t, 6, resultCount(t, s))
}

func TestRun_FailingQuery(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q1.sql"), []byte("select 1;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q2.sql"), []byte("select * from no_such_table;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q3.sql"), []byte("select 3;"), 0o644))

	var out bytes.Buffer
	n, err := New(s, ".sql", &Printer{Out: &out}).Run(ctx, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run benchmark: query q2.sql")
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, results.Record) error {
	return errors.New("disk full")
}

func TestRun_RecorderError(t *testing.T) {
	_, err := New(openMemory(t), ".sql", failingRecorder{}).Run(context.Background(), queryDir(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRun_EmptyDir(t *testing.T) {
	var out bytes.Buffer
	n, err := New(openMemory(t), ".sql", &Printer{Out: &out}).Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, out.String())
}

func TestRun_ReadsEveryRow(t *testing.T) {
	dir := t.TempDir()
	// only the fifth row overflows, so the error shows up only if all rows are read
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q1.sql"), []byte(`
		with recursive n(i) as (select 1 union all select i + 1 from n where i < 5)
		select case when i = 5 then abs(-9223372036854775807 - 1) else i end from n;
	`), 0o644))

	var out bytes.Buffer
	n, err := New(openMemory(t), ".sql", &Printer{Out: &out}).Run(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integer overflow")
	assert.Equal(t, 0, n)
	assert.Empty(t, out.String())
}

func TestRun_MultiStatementScriptRunsEveryStatement(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q15.sql"), []byte(`
		create table revenue_log (k integer); -- scratch table; read back below
		insert into revenue_log select l_orderkey from lineitem;
		select count(*) from revenue_log;
	`), 0o644))

	_, err := New(s, ".sql", &Printer{Out: &bytes.Buffer{}}).Run(ctx, dir)
	require.NoError(t, err)

	var rows int
	require.NoError(t, s.Conn().QueryRowContext(ctx, "select count(*) from revenue_log").Scan(&rows))
	assert.Equal(t, 3, rows)
}
