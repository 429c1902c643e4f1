package database

import (
	"io/fs"
	"os"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return true
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

type MigrationConfig struct {
	// FolderPath overrides the embedded migrations when it points at an existing directory.
	FolderPath   string
	Version      uint
	Force        int
	AutoRollback bool
}

type MigrationService struct {
	config   MigrationConfig
	embedded fs.FS
	logger   ectologger.Logger
}

// NewMigrationService builds a migration runner. embedded is an fs whose root holds the
// NNN_name.up.sql / NNN_name.down.sql files.
func NewMigrationService(logger ectologger.Logger, config MigrationConfig, embedded fs.FS) *MigrationService {
	return &MigrationService{
		config:   config,
		embedded: embedded,
		logger:   logger,
	}
}

func (ms *MigrationService) newMigrate(db DB) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db.Unsafe().DB, &postgres.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create postgres migration driver")
	}

	if ms.config.FolderPath != "" {
		if _, err := os.Stat(ms.config.FolderPath); err == nil {
			return migrate.NewWithDatabaseInstance("file://"+ms.config.FolderPath, "postgres", driver)
		}
		ms.logger.Warnf("Migration folder %s not found, using embedded migrations", ms.config.FolderPath)
	}

	src, err := iofs.New(ms.embedded, ".")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open embedded migrations")
	}

	return migrate.NewWithInstance("iofs", src, "postgres", driver)
}

// Migrate applies migrations up to the configured version (latest when zero).
func (ms *MigrationService) Migrate(db DB) error {
	m, err := ms.newMigrate(db)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}
	m.Log = MigrationLogger{Logger: ms.logger}

	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", ms.config.Force)
			return err
		}
	}

	previous, _, versionErr := m.Version()
	if versionErr != nil && versionErr != migrate.ErrNilVersion {
		ms.logger.WithError(versionErr).Error("Failed to get current migration version")
	}

	start := time.Now()
	if ms.config.Version != 0 {
		err = m.Migrate(ms.config.Version)
	} else {
		err = m.Up()
	}
	ms.logger.Infof("Database migrations completed in %v", time.Since(start))

	return ms.handleMigrationError(m, err, previous)
}

func (ms *MigrationService) handleMigrationError(m *migrate.Migrate, err error, previousVersion uint) error {
	if err == nil {
		ms.logger.Info("Successfully applied migrations")
		return nil
	}

	if err == migrate.ErrNoChange {
		ms.logger.Info("No new migrations to apply")
		return nil
	}

	ms.logger.WithError(err).Errorf("Migration failed with error: %v", err)

	version, dirty, versionErr := m.Version()
	if versionErr != nil {
		ms.logger.WithError(versionErr).Error("Failed to get current migration version")
		return err
	}

	if dirty && ms.config.AutoRollback && previousVersion > 0 {
		ms.logger.Warnf("Database is dirty at version %d. Reverting to version %d", version, previousVersion)
		if forceErr := m.Force(int(previousVersion)); forceErr != nil {
			ms.logger.WithError(forceErr).Errorf("Failed to force database to version %d", previousVersion)
			return forceErr
		}
	}

	// the original error is still returned so the service refuses to start on a failed migration
	return err
}
