package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"medialib/internal/domain/repositories"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Folders       string
	Assets        string
	AssetVariants string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Folders:       fmt.Sprintf("%sfolders", prefix),
		Assets:        fmt.Sprintf("%sassets", prefix),
		AssetVariants: fmt.Sprintf("%sasset_variants", prefix),
	}
}

// All returns every table name, children before parents (safe drop order)
func (t *TableNames) All() []string {
	return []string{t.AssetVariants, t.Assets, t.Folders}
}

// Pool sizing
const (
	maxConns = 25
	minConns = 5
)

// CreateConnectionPool creates a new pgx connection pool.
//
// Port 6543 is treated as a PgBouncer transaction pooler, which does not
// support prepared statements; for it the pool switches to
// QueryExecModeCacheDescribe unless the connection string already chose a
// mode via default_query_exec_mode.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = maxConns
	config.MinConns = minConns

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the transaction stored in ctx, or the pool when the
// call is not part of a transaction.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}
