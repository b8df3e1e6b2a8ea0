package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// RenderSchema returns the DDL with table placeholders replaced by prefixed names
func RenderSchema(tables *TableNames) string {
	return strings.NewReplacer(
		"{{folders}}", tables.Folders,
		"{{assets}}", tables.Assets,
		"{{asset_variants}}", tables.AssetVariants,
	).Replace(schemaSQL)
}

// EnsureSchema creates the tables and indexes if they do not exist
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	if _, err := pool.Exec(ctx, RenderSchema(tables)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
