package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-vitotrips/internal/config"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/models"
)

const (
	maxConnectAttempts = 5
	connectBackoff     = 2 * time.Second
)

// Connect opens postgres through lib/pq and pings it until it answers or the
// attempts run out.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	var sqldb *sql.DB
	var err error

	for i := 0; i < maxConnectAttempts; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxConnectAttempts))
		sqldb, err = sql.Open("postgres", cfg.DSN())
		if err == nil {
			err = sqldb.PingContext(ctx)
			if err == nil {
				break
			}
			sqldb.Close()
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxConnectAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(connectBackoff):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres after %d attempts: %w", maxConnectAttempts, err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// SupportsRowLocks reports whether SELECT ... FOR UPDATE is available. SQLite
// serializes writers on its own and rejects the clause.
func SupportsRowLocks(db bun.IDB) bool {
	return db.Dialect().Name() == dialect.PG
}

// Models lists every table in creation order.
var Models = []interface{}{
	(*models.User)(nil),
	(*models.Tour)(nil),
	(*models.Group)(nil),
	(*models.GroupMember)(nil),
	(*models.Booking)(nil),
	(*models.Payment)(nil),
}

// CreateSchema builds tables straight from the bun models. Postgres
// deployments use the SQL migrations instead; this serves embedded SQLite.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range Models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}
