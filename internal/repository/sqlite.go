package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vigilant-watch/vigilant/internal/domain"
)

// NewSQLite opens (creating if necessary) a SQLite database at cfg.SQLitePath
// and applies the schema. The connection pool is capped at a single writer
// because SQLite serializes writes anyway.
func NewSQLite(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = "vigilant.db"
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	repo := &SQLRepository{db: db, driver: "sqlite"}
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}
