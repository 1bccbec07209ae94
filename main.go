package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"tpchbench/config"
	"tpchbench/loader"
	"tpchbench/results"
	"tpchbench/runner"
	"tpchbench/schema"
	"tpchbench/session"

	"github.com/google/uuid"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const (
	saveAloneUsage = "--save-results can't be called alone. Use it together with --run-benchmark."
	noFlagUsage    = "No argument provided. Use --create-schema, --load-data, --run-benchmark, --save-results, or --fetch-results."
)

type mode int

const (
	modeNone mode = iota
	modeCreateSchema
	modeLoadData
	modeBenchmarkAndSave
	modeBenchmark
	modeSaveAlone
	modeFetchResults
)

type modeFlags struct {
	CreateSchema bool
	LoadData     bool
	RunBenchmark bool
	SaveResults  bool
	FetchResults bool
}

// Picks the operation to run; when several flags are set the first match wins
func selectMode(f modeFlags) mode {
	switch {
	case f.CreateSchema:
		return modeCreateSchema
	case f.LoadData:
		return modeLoadData
	case f.RunBenchmark && f.SaveResults:
		return modeBenchmarkAndSave
	case f.RunBenchmark:
		return modeBenchmark
	case f.SaveResults:
		return modeSaveAlone
	case f.FetchResults:
		return modeFetchResults
	default:
		return modeNone
	}
}

// Prepare zerolog. Errors are still logged when the log is disabled.
func setupLogging(disableLog bool, level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var zlevel zerolog.Level
	if disableLog {
		zlevel = zerolog.ErrorLevel
	} else if l, err := zerolog.ParseLevel(level); err == nil && l != zerolog.NoLevel {
		zlevel = l
	} else {
		zlevel = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(zlevel)

	writer := zerolog.ConsoleWriter{
		Out:        colorable.NewColorable(os.Stderr),
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()),
		TimeFormat: time.TimeOnly,
	}
	zlog.Logger = zerolog.New(writer).With().Timestamp().Str("run", uuid.NewString()).Logger()
}

// Opens the session, runs the selected operation and always closes the session.
func run(ctx context.Context, cfg *config.Config, m mode, stdout io.Writer) (err error) {
	s, err := session.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return dispatch(ctx, s, cfg, m, stdout)
}

func dispatch(ctx context.Context, s *session.Session, cfg *config.Config, m mode, stdout io.Writer) error {
	switch m {
	case modeCreateSchema:
		return schema.New(s).Apply(ctx, cfg.SchemaFile)

	case modeLoadData:
		l := loader.New(s, loader.Options{Ext: cfg.DataExt, Delimiter: cfg.Delimiter, Analyze: cfg.Analyze})
		n, err := l.Load(ctx, cfg.DataDir)
		if err != nil {
			return err
		}
		zlog.Info().Int("files", n).Msg("Data loaded")
		return nil

	case modeBenchmarkAndSave:
		store := results.New(s, cfg.ResultsTable)
		if err := store.EnsureTable(ctx); err != nil {
			return err
		}
		_, err := runner.New(s, cfg.QueryExt, store).Run(ctx, cfg.QueriesDir)
		return err

	case modeBenchmark:
		_, err := runner.New(s, cfg.QueryExt, &runner.Printer{Out: stdout}).Run(ctx, cfg.QueriesDir)
		return err

	case modeSaveAlone:
		fmt.Fprintln(stdout, saveAloneUsage)
		return nil

	case modeFetchResults:
		zlog.Info().Str("table", cfg.ResultsTable).Msg("Fetching results")
		records, err := results.New(s, cfg.ResultsTable).FetchAll(ctx)
		if err != nil {
			return err
		}
		return results.Print(stdout, records)

	default:
		fmt.Fprintln(stdout, noFlagUsage)
		return nil
	}
}

func main() {
	var flags modeFlags
	disableLog := pflag.Bool("no-log", false, "Disables the log (errors are still reported)")
	configFile := pflag.String("conf", "tpchbench.yaml", "Benchmark config file")
	logLevel := pflag.String("level", "info", "Log level (debug|info|warn|error)")
	pflag.BoolVar(&flags.CreateSchema, "create-schema", false,
		"Reads the schema file and creates its tables, dropping existing tables with the same name")
	pflag.BoolVar(&flags.LoadData, "load-data", false, "Loads the data files into the tables named after them")
	pflag.BoolVar(&flags.RunBenchmark, "run-benchmark", false, "Runs the queries and outputs their execution time")
	pflag.BoolVar(&flags.SaveResults, "save-results", false,
		"Saves the benchmark results to the results table (requires --run-benchmark)")
	pflag.BoolVar(&flags.FetchResults, "fetch-results", false, "Prints the results saved in the results table")
	pflag.Parse()

	setupLogging(*disableLog, *logLevel)

	cfg, err := config.Load(*configFile)
	if err != nil {
		zlog.Error().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, selectMode(flags), os.Stdout); err != nil {
		zlog.Error().Err(err).Msg("Aborted")
		os.Exit(1)
	}
}
