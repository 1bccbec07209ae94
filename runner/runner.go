package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"tpchbench/results"
	"tpchbench/session"
	"tpchbench/util"

	zlog "github.com/rs/zerolog/log"
)

// Recorder receives the timing of each executed query
type Recorder interface {
	Record(ctx context.Context, r results.Record) error
}

// Printer is a Recorder that writes the timings instead of saving them
type Printer struct {
	Out io.Writer
}

func (p *Printer) Record(_ context.Context, r results.Record) error {
	_, err := fmt.Fprintf(p.Out, "Query %s executed in - %v seconds\n", r.QueryName, r.Duration)
	return err
}

// Runner executes every query file of a directory once and times it
type Runner struct {
	session  *session.Session
	ext      string
	recorder Recorder
}

func New(s *session.Session, ext string, recorder Recorder) *Runner {
	return &Runner{session: s, ext: ext, recorder: recorder}
}

// Run executes the query files of dir in name order and returns how many ran.
// The first failing query stops the run.
func (r *Runner) Run(ctx context.Context, dir string) (int, error) {
	files, err := util.ListFiles(dir, r.ext)
	if err != nil {
		return 0, fmt.Errorf("run benchmark: %w", err)
	}

	zlog.Info().Str("dir", dir).Int("queries", len(files)).Msg("Executing queries")

	for i, file := range files {
		record, err := r.runFile(ctx, file)
		if err != nil {
			return i, fmt.Errorf("run benchmark: %w", err)
		}
		if err := r.recorder.Record(ctx, record); err != nil {
			return i, fmt.Errorf("run benchmark: %w", err)
		}
	}

	return len(files), nil
}

func (r *Runner) runFile(ctx context.Context, path string) (results.Record, error) {
	name := filepath.Base(path)

	query, err := os.ReadFile(path)
	if err != nil {
		return results.Record{}, err
	}

	start := util.EpochSeconds()
	err = r.session.Dialect().Execute(ctx, r.session.Conn(), string(query))
	rt := util.EpochSeconds() - start
	if err != nil {
		return results.Record{}, fmt.Errorf("query %s: %w", name, err)
	}

	zlog.Debug().Str("query", name).Float64("rt", rt).Msg("completed")

	return results.Record{RunAt: time.Now(), QueryName: name, Duration: rt}, nil
}
