// Package session owns the single database connection used for the whole run.
package session

import (
	"context"
	"database/sql"
	"fmt"

	"tpchbench/config"

	_ "github.com/mattn/go-sqlite3"
	zlog "github.com/rs/zerolog/log"
)

// Session is one pinned connection to the database. It is not safe for concurrent use.
type Session struct {
	db       *sql.DB
	conn     *sql.Conn
	dialect  Dialect
	database string
	user     string
}

// Open connects to the configured database and reserves the one connection every
// component works on. Close must be called on every exit path.
func Open(ctx context.Context, cfg *config.Config) (*Session, error) {
	dialect, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, cfg.DataSourceName())
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Database, err)
	}
	// exactly one connection for the process; an in-memory sqlite database also lives
	// only as long as its connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s: %w", cfg.Database, err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s: %w", cfg.Database, err)
	}

	zlog.Info().Str("database", cfg.Database).Str("user", cfg.User).Str("driver", dialect.Name()).
		Msg("Connected")

	return &Session{db: db, conn: conn, dialect: dialect, database: cfg.Database, user: cfg.User}, nil
}

func (s *Session) Conn() *sql.Conn {
	return s.conn
}

func (s *Session) Dialect() Dialect {
	return s.dialect
}

// Close releases the connection, then the pool. Calling it again is a no-op.
func (s *Session) Close() error {
	if s.db == nil {
		return nil
	}

	connErr := s.conn.Close()
	dbErr := s.db.Close()
	s.conn, s.db = nil, nil

	if connErr != nil {
		return fmt.Errorf("disconnect from %s: %w", s.database, connErr)
	}
	if dbErr != nil {
		return fmt.Errorf("disconnect from %s: %w", s.database, dbErr)
	}

	zlog.Info().Str("database", s.database).Str("user", s.user).Msg("Disconnected")
	return nil
}
