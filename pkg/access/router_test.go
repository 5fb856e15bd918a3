package access

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRouter records the patterns the enforcer registers dispatchers for.
type mockRouter struct {
	handledPaths []string
	handlers     map[string]http.Handler
}

func (m *mockRouter) Handle(pattern string, handler http.Handler) {
	if m.handlers == nil {
		m.handlers = map[string]http.Handler{}
	}
	m.handledPaths = append(m.handledPaths, pattern)
	m.handlers[pattern] = handler
}

func (m *mockRouter) serve(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	h, ok := m.handlers[path]
	require.True(t, ok, "no dispatcher for %s", path)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func writeBody(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newTestEnforcer() (*Enforcer, *mockRouter) {
	router := &mockRouter{}
	return NewEnforcer(nil, router, &fakeResolver{}, nil, Config{}), router
}

func TestParseRoute(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantMethod string
		wantPath   string
	}{
		{"MethodAndPath", "GET /me", "GET", "/me"},
		{"PathOnly", "/healthz", "", "/healthz"},
		{"EmptyString", "", "", "/"},
		{"WhitespaceOnly", "   ", "", "/"},
		{"MethodOnly", "POST", "", "/"},
		{"ExtraSpaces", "  POST   /admin/sessions/prune  ", "POST", "/admin/sessions/prune"},
		{"LowercaseMethod", "post /login", "POST", "/login"},
		{"RootPath", "GET /", "GET", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMethod, gotPath := parseRoute(tt.input)
			assert.Equal(t, tt.wantMethod, gotMethod)
			assert.Equal(t, tt.wantPath, gotPath)
		})
	}
}

func TestHandle_RegistersOneDispatcherPerPath(t *testing.T) {
	e, router := newTestEnforcer()

	for _, method := range []string{"GET", "POST", "DELETE"} {
		require.NoError(t, e.Handle(method+" /admin/sessions", writeBody(http.StatusOK, method)))
	}

	assert.Equal(t, []string{"/admin/sessions"}, router.handledPaths)
	for _, method := range []string{"GET", "POST", "DELETE"} {
		assert.Contains(t, e.handlers["/admin/sessions"], method)
	}
}

func TestHandle_DuplicateRoute(t *testing.T) {
	e, _ := newTestEnforcer()

	require.NoError(t, e.Handle("POST /login", writeBody(http.StatusOK, "")))
	err := e.Handle("post /login", writeBody(http.StatusOK, ""))
	require.Error(t, err)

	var dupErr *DuplicatePathAndMethodError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "/login", dupErr.Path)
	assert.Equal(t, "POST", dupErr.Method)
	assert.ErrorIs(t, err, ErrDuplicatePathAndMethod)
	assert.Equal(t, "enforcer: duplicate path: /login and method: POST attempted", err.Error())
}

func TestHandle_NilHandler(t *testing.T) {
	e, router := newTestEnforcer()

	assert.ErrorIs(t, e.Handle("GET /me", nil), ErrNilHandler)
	assert.ErrorIs(t, e.HandleFunc("GET /me", nil), ErrNilHandler)
	assert.Empty(t, router.handledPaths)
}

func TestHandle_EmptyRouteIsWildcardRoot(t *testing.T) {
	e, _ := newTestEnforcer()

	require.NoError(t, e.Handle("", writeBody(http.StatusOK, "")))
	assert.Contains(t, e.handlers["/"], "")
}

func TestDispatcher(t *testing.T) {
	t.Run("ExactMethodBeatsWildcard", func(t *testing.T) {
		e, router := newTestEnforcer()
		require.NoError(t, e.Handle("GET /me", writeBody(http.StatusOK, "specific")))
		require.NoError(t, e.Handle("/me", writeBody(http.StatusAccepted, "wildcard")))

		rec := router.serve(t, http.MethodGet, "/me")
		assert.Equal(t, "specific", rec.Body.String())

		rec = router.serve(t, http.MethodPut, "/me")
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "wildcard", rec.Body.String())
	})

	t.Run("UnknownMethodIs405JSON", func(t *testing.T) {
		e, router := newTestEnforcer()
		require.NoError(t, e.Handle("POST /logout", writeBody(http.StatusOK, "")))

		rec := router.serve(t, http.MethodGet, "/logout")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"error":"method not allowed"}`, rec.Body.String())
	})
}

func TestDuplicatePathAndMethodError_Is(t *testing.T) {
	err1 := &DuplicatePathAndMethodError{Path: "/login", Method: "POST"}
	err2 := &DuplicatePathAndMethodError{Path: "/me", Method: "GET"}

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, errors.New("different error")))
}

func BenchmarkParseRoute(b *testing.B) {
	routes := []string{
		"GET /me",
		"/healthz",
		"POST /login",
		"POST /admin/sessions/prune",
	}

	for i := 0; i < b.N; i++ {
		parseRoute(routes[i%len(routes)])
	}
}

func BenchmarkHandle(b *testing.B) {
	handler := writeBody(http.StatusOK, "")
	for i := 0; i < b.N; i++ {
		e, _ := newTestEnforcer()
		_ = e.Handle("GET /bench/"+strconv.Itoa(i%1000), handler)
	}
}
