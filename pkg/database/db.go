package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// DB is the subset of sqlx.DB the repositories depend on.
type DB interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PingContext(ctx context.Context) error
	Close() error
}

// Config holds Postgres connection configuration.
type Config struct {
	Driver          string
	Host            string
	Port            string
	UserName        string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DatabaseInstance wraps sqlx with logging.
type DatabaseInstance struct {
	*sqlx.DB
	logger *zap.Logger
}

// Connect opens and verifies a database connection.
func Connect(cfg Config, logger *zap.Logger) (*DatabaseInstance, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.UserName, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := sqlx.Connect(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", cfg.Name, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger.Info("Connected to database", zap.String("database", cfg.Name), zap.String("host", cfg.Host))

	return &DatabaseInstance{DB: db, logger: logger}, nil
}

// NewDatabaseInstance wraps an existing sqlx.DB.
func NewDatabaseInstance(db *sqlx.DB, logger *zap.Logger) *DatabaseInstance {
	return &DatabaseInstance{DB: db, logger: logger}
}
