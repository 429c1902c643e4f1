package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/config"
)

func getTestLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:                  "fern-test",
		Version:                  "test",
		StoreDriver:              "memory",
		StartupMaxAttempts:       1,
		CascadeCollections:       []string{"rewards", "receipts"},
		CascadeCollectionTimeout: 0,
		CascadeMaxConcurrency:    2,
		BulkRepairDelay:          -1,
		CountryCode:              "27",
		TransactionsCollection:   "receipts",
		OTLPProtocol:             "none",
	}
}

func TestApp_ServesGuestAPI(t *testing.T) {
	ctx := context.Background()
	a := New(testConfig(), getTestLogger())
	require.NoError(t, a.Start(ctx))
	defer func() { assert.NoError(t, a.Stop(ctx)) }()

	require.NotNil(t, a.Guests)
	assert.Nil(t, a.DB)
	assert.Len(t, a.Engine.Targets(), 2)

	srv, err := NewServer(ctx, a)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/guests", strings.NewReader(`{"name":"Alice","phone":"0827001116"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewLogger(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "debug"
	cfg.PrettyLogs = true
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
