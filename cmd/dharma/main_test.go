package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arvindjonn09/dharma-mini/pkg/models"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func writeConfig(t *testing.T) (configPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	configPath = filepath.Join(dir, "dharma.yaml")
	cfg := fmt.Sprintf(`store:
  backend: file
  sessions_file: %s
  users_file: %s
log:
  level: error
`, filepath.Join(dir, "sessions.json"), filepath.Join(dir, "users.json"))
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o600))
	return configPath, dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	cmd := newRootCmd(&out, &logs)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUsersCommands(t *testing.T) {
	configPath, _ := writeConfig(t)

	out, err := run(t, "--config", configPath, "users", "add",
		"--username", "asha", "--first-name", "Asha", "--year", "1990",
		"--language", "Tamil", "--password", "lotus#flower")
	require.NoError(t, err)
	assert.Contains(t, out, "registered asha (Asha)")

	_, err = run(t, "--config", configPath, "users", "add",
		"--username", "asha", "--first-name", "Asha", "--year", "1990", "--password", "lotus#flower")
	assert.Error(t, err, "username is taken")

	_, err = run(t, "--config", configPath, "users", "add",
		"--username", "ravi", "--first-name", "Ravi", "--year", "1990")
	assert.ErrorContains(t, err, passwordEnv)

	t.Setenv(passwordEnv, "dharma#path")
	_, err = run(t, "--config", configPath, "users", "add",
		"--username", "ravi", "--first-name", "Ravi", "--year", "1985")
	require.NoError(t, err)

	out, err = run(t, "--config", configPath, "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "asha")
	assert.Contains(t, out, "1985")

	out, err = run(t, "--config", configPath, "users", "delete", "asha")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted asha")

	_, err = run(t, "--config", configPath, "users", "delete", "asha")
	assert.Error(t, err)
}

func TestSessionsCommands(t *testing.T) {
	configPath, dir := writeConfig(t)
	doc := fmt.Sprintf(`{
  "old-token-aaaaaaaaaaaa": {"role": "user", "username": "asha", "created_at": "2020-01-01T10:00:00"},
  "new-token-bbbbbbbbbbbb": {"role": "admin", "username": "root", "created_at": %q}
}`, models.FormatTimestamp(time.Now()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sessions.json"), []byte(doc), 0o600))

	out, err := run(t, "--config", configPath, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "expired")
	assert.Contains(t, out, "active")
	assert.NotContains(t, out, "old-token-aaaaaaaaaaaa", "tokens are shown as a prefix only")

	out, err = run(t, "--config", configPath, "sessions", "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 expired session(s)")

	out, err = run(t, "--config", configPath, "sessions", "revoke", "new-token-bbbbbbbbbbbb")
	require.NoError(t, err)
	assert.Contains(t, out, "session revoked")

	out, err = run(t, "--config", configPath, "sessions", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "root")
}

func TestBackendFlagOverridesFile(t *testing.T) {
	configPath, _ := writeConfig(t)

	_, err := run(t, "--config", configPath, "--backend", "cassandra", "sessions", "list")
	assert.Error(t, err)
}

func TestServeHTTP_GracefulShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := newHTTPServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveHTTP(ctx, logr.Discard(), srv, ln, time.Second)
	}()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "ok", string(body))
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeHTTP_ListenerFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	err = serveHTTP(context.Background(), logr.Discard(), newHTTPServer(http.NotFoundHandler()), ln, time.Second)
	assert.Error(t, err)
}
