package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const processedTable = "processed_updates"

// PostgresStore persists processed-update IDs in PostgreSQL so dedup
// state survives restarts and can be shared between replicas.
type PostgresStore struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
	stop    chan struct{}
	done    chan struct{}
}

// NewPostgresStore opens a connection pool against dsn, ensures the
// schema exists, and starts a background sweep that purges expired rows
// every sweepInterval. A zero sweepInterval disables the sweep.
func NewPostgresStore(dsn string, sweepInterval time.Duration) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	} else {
		close(s.done)
	}

	return s, nil
}

func (s *PostgresStore) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS processed_updates (
			update_id  TEXT PRIMARY KEY,
			expires_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS processed_updates_expires_at_idx
			ON processed_updates (expires_at);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Has reports whether id is marked processed and unexpired.
func (s *PostgresStore) Has(ctx context.Context, id string) (bool, error) {
	query, args, err := s.builder.
		Select("1").
		From(processedTable).
		Where(sq.Eq{"update_id": id}).
		Where(sq.Gt{"expires_at": time.Now()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = s.db.GetContext(ctx, &one, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query processed update: %w", err)
	}
	return true, nil
}

// MarkProcessed upserts id with the given ttl.
func (s *PostgresStore) MarkProcessed(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	query, args, err := s.builder.
		Insert(processedTable).
		Columns("update_id", "expires_at").
		Values(id, time.Now().Add(ttl)).
		Suffix("ON CONFLICT (update_id) DO UPDATE SET expires_at = EXCLUDED.expires_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark update processed: %w", err)
	}
	return nil
}

func (s *PostgresStore) sweepLoop(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_ = s.sweep(ctx)
			cancel()
		}
	}
}

// sweep deletes expired rows.
func (s *PostgresStore) sweep(ctx context.Context) error {
	query, args, err := s.builder.
		Delete(processedTable).
		Where(sq.LtOrEq{"expires_at": time.Now()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sweep expired updates: %w", err)
	}
	return nil
}

// Close stops the sweep loop and closes the connection pool.
func (s *PostgresStore) Close() error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
	return s.db.Close()
}

var _ Store = (*PostgresStore)(nil)
