package dharma

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/arvindjonn09/dharma-mini/api"
	"github.com/arvindjonn09/dharma-mini/internal/config"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(t *testing.T, backend string) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Store.Backend = backend
	cfg.Store.SessionsFile = filepath.Join(dir, "sessions.json")
	cfg.Store.UsersFile = filepath.Join(dir, "users.json")
	cfg.Store.SqlitePath = filepath.Join(dir, "dharma.db")
	cfg.Admin = config.AdminConfig{Username: "root", Password: "s3cret!pass"}
	return cfg
}

func post(t *testing.T, h http.Handler, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, &buf))
	return rec
}

func TestNew_EndToEnd(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendSqlite, config.BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			var logs bytes.Buffer
			logger := logr.FromSlogHandler(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

			d, err := New(context.Background(), testConfig(t, backend), WithLogger(logger), WithHashCost(bcrypt.MinCost))
			require.NoError(t, err)
			t.Cleanup(func() { assert.NoError(t, d.Close()) })
			h := d.Handler()

			rec := post(t, h, "/signup", map[string]any{
				"username":      "ravi",
				"first_name":    "Ravi",
				"year_of_birth": "1980",
				"password":      "dharma#path",
				"language":      "Hindi",
			})
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			var auth api.AuthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &auth))

			rec = httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me"+auth.ResumeLink, nil))
			var me api.MeResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
			assert.Equal(t, models.RoleUser, me.View.Role)
			require.NotNil(t, me.View.AgeGroup)
			assert.Equal(t, models.AgeGroupAdult, *me.View.AgeGroup)

			sessions, err := d.Sessions.ActiveSessions(context.Background())
			require.NoError(t, err)
			assert.Len(t, sessions, 1)

			assert.Contains(t, logs.String(), "dharma routes loaded")
			assert.NotContains(t, logs.String(), auth.Token, "tokens are only logged redacted")
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t, config.BackendFile)
	cfg.Session.OrphanPolicy = "forget"

	d, err := New(context.Background(), cfg)
	assert.Nil(t, d)
	require.Error(t, err)
}

func TestNew_CustomRouter(t *testing.T) {
	mux := http.NewServeMux()
	d, err := New(context.Background(), testConfig(t, config.BackendMemory), WithRouter(mux))
	require.NoError(t, err)
	defer d.Close()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNew_ClockAndWarningSettings(t *testing.T) {
	now := time.Date(2020, 2, 2, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	cfg := testConfig(t, config.BackendMemory)
	cfg.Session.WarningMinutes = 0

	d, err := New(context.Background(), cfg, WithClock(clock), WithHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, d.Close()) })
	h := d.Handler()

	rec := post(t, h, "/admin/login", api.LoginRequest{Username: "root", Password: "s3cret!pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var auth api.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &auth))

	want := now.Add(40 * time.Minute)
	assert.True(t, auth.ExpiresAt.Equal(want), "expires_at %s", auth.ExpiresAt)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Expires.Equal(want), "cookie expires %s", cookies[0].Expires)

	now = now.Add(35 * time.Minute)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me"+auth.ResumeLink, nil))
	var me api.MeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, models.RoleAdmin, me.View.Role)
	assert.False(t, me.ExpiryWarning, "warning_minutes 0 turns warnings off")
}
