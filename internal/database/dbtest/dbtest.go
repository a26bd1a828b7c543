// Package dbtest opens throwaway SQLite databases for repository tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-vitotrips/internal/database"
)

// Open returns an in-memory database with every table created. Each call gets
// its own database; it is closed when the test ends.
func Open(t testing.TB) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// one connection keeps the in-memory database alive and serializes transactions
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := database.CreateSchema(context.Background(), db); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}
