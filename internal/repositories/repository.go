// Package repositories holds the Postgres persistence layer.
package repositories

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/gustavoairestiago/cadastro-retorno/pkg/database"
)

// NotFound returns a 404 HTTP error with a descriptive message
func NotFound(format string, args ...any) error {
	return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf(format, args...))
}

// BadRequest returns a 400 HTTP error
func BadRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, message)
}

// Internal returns a 500 HTTP error
func Internal(message string) error {
	return echo.NewHTTPError(http.StatusInternalServerError, message)
}

// Repository provides common database operations
type Repository struct {
	db     database.DB
	logger *zap.Logger
}

// NewRepository creates a new base repository
func NewRepository(db database.DB, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// DB returns the database instance
func (r *Repository) DB() database.DB {
	return r.db
}
