package docstore

import (
	"context"
	"os"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/db"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/database"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getTestDB connects to the database named by DB_HOST and friends. The test is skipped when
// DB_HOST is unset so unit runs do not need a postgres instance.
func getTestDB(t *testing.T) database.DB {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		t.Skip("DB_HOST not set, skipping postgres store integration test")
	}

	logger := getTestLogger()
	conn, err := database.Open(context.Background(), database.Config{
		Host:     host,
		Port:     envOr("DB_PORT", "5432"),
		User:     envOr("DB_USER_NAME", "user"),
		Password: envOr("DB_PASSWORD", "password"),
		Name:     envOr("DB_NAME", "fern"),
	}, logger)
	require.NoError(t, err, "Failed to connect to test database")

	migrations := database.NewMigrationService(logger, database.MigrationConfig{}, db.Migrations())
	require.NoError(t, migrations.Migrate(conn))

	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestPostgresStore_Contract(t *testing.T) {
	conn := getTestDB(t)
	logger := getTestLogger()

	runStoreContract(t, func(t *testing.T) Store {
		_, err := conn.ExecContext(context.Background(), "DELETE FROM documents")
		require.NoError(t, err)
		return NewPostgresStore(conn, logger)
	})
}
