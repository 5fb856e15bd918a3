package access

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/arvindjonn09/dharma-mini/api"
)

// Router abstracts the mux the enforcer registers its dispatchers on.
// *http.ServeMux satisfies it.
type Router interface {
	Handle(pattern string, handler http.Handler)
}

// ErrNilHandler is returned when Handle is given no handler.
var ErrNilHandler = errors.New("enforcer: nil handler")

// Handle registers handler for route, wrapped with session resolution and
// the role check of the matching policy. The route is either "/path" (any
// method) or "METHOD /path". One dispatcher is registered on the router per
// path; it picks the handler by method and answers 405 otherwise.
func (e *Enforcer) Handle(route string, handler http.Handler) error {
	if handler == nil {
		return fmt.Errorf("%w for route %q", ErrNilHandler, route)
	}
	method, path := parseRoute(route)
	e.log.Debug("enforcer handling route", "method", method, "path", path)

	e.mu.Lock()
	if e.handlers == nil {
		e.handlers = make(map[string]map[string]http.Handler)
	}
	if _, exists := e.handlers[path][method]; exists {
		e.mu.Unlock()
		err := NewDuplicatePathAndMethodError(path, method)
		e.log.Error("route registered twice", "err", err)
		return err
	}
	_, known := e.handlers[path]
	if !known {
		e.handlers[path] = make(map[string]http.Handler)
	}
	e.mu.Unlock()

	// the policy lookup takes the read lock itself
	wrapped := e.WrapHandler(path, method, handler)

	e.mu.Lock()
	e.handlers[path][method] = wrapped
	e.mu.Unlock()

	if !known {
		e.router.Handle(path, e.dispatcher(path))
	}
	return nil
}

// HandleFunc is Handle for an http.HandlerFunc.
func (e *Enforcer) HandleFunc(route string, handlerFunc http.HandlerFunc) error {
	if handlerFunc == nil {
		return e.Handle(route, nil)
	}
	return e.Handle(route, handlerFunc)
}

func (e *Enforcer) dispatcher(path string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.mu.RLock()
		h, ok := e.handlers[path][r.Method]
		if !ok {
			h, ok = e.handlers[path][""]
		}
		e.mu.RUnlock()

		if !ok {
			api.ReturnError(w, e.log, api.MethodNotAllowed)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// parseRoute parses a route string into method and path components.
// Valid formats are:
//
//	"METHOD /path"   e.g. "GET /admin"
//	"/path"          e.g. "/admin"
//
// An empty method means the route applies to all HTTP methods.
func parseRoute(route string) (method, path string) {
	parts := strings.Fields(route)
	switch len(parts) {
	case 0:
		return "", "/"
	case 1:
		if strings.HasPrefix(parts[0], "/") {
			return "", parts[0]
		}
		// method but no path
		return "", "/"
	default:
		return strings.ToUpper(parts[0]), parts[1]
	}
}

// ErrDuplicatePathAndMethod matches any DuplicatePathAndMethodError with errors.Is.
var ErrDuplicatePathAndMethod = &DuplicatePathAndMethodError{}

// DuplicatePathAndMethodError reports a second registration of the same route.
type DuplicatePathAndMethodError struct {
	Method string
	Path   string
}

func NewDuplicatePathAndMethodError(path, method string) *DuplicatePathAndMethodError {
	return &DuplicatePathAndMethodError{
		Method: method,
		Path:   path,
	}
}

func (e *DuplicatePathAndMethodError) Error() string {
	return fmt.Sprintf("enforcer: duplicate path: %s and method: %s attempted", e.Path, e.Method)
}

func (e *DuplicatePathAndMethodError) Is(target error) bool {
	_, ok := target.(*DuplicatePathAndMethodError)
	return ok
}
