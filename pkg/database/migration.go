package database

import (
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type migrationLogger struct {
	logger *zap.SugaredLogger
}

func (l migrationLogger) Verbose() bool {
	return true
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.logger.Infof(format, v...)
}

// Migrate applies all pending up migrations from the given folder.
func Migrate(db *sqlx.DB, databaseName, folderPath string, logger *zap.Logger) error {
	if _, err := os.Stat(folderPath); err != nil {
		if wd, wdErr := os.Getwd(); wdErr == nil {
			folderPath = wd + "/" + folderPath
		}
	}
	if _, err := os.Stat(folderPath); err != nil {
		return errors.Wrap(err, fmt.Sprintf("migration folder %s does not exist", folderPath))
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "failed to create migration driver")
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+folderPath, databaseName, driver)
	if err != nil {
		logger.Error("Failed to create migrate instance", zap.Error(err))
		return err
	}
	m.Log = migrationLogger{logger: logger.Sugar()}

	err = m.Up()
	if err == migrate.ErrNoChange {
		logger.Info("No new migrations to apply")
		return nil
	}
	if err != nil {
		version, dirty, _ := m.Version()
		logger.Error("Failed to apply migrations",
			zap.Error(err), zap.Uint("version", version), zap.Bool("dirty", dirty))
		return err
	}

	logger.Info("Successfully applied migrations")
	return nil
}
