package command

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

// mockServer creates a test HTTP server with custom handlers.
type mockServer struct {
	*httptest.Server
	handlers map[string]http.HandlerFunc
	requests []*http.Request
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	m := &mockServer{handlers: make(map[string]http.HandlerFunc)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests = append(m.requests, r)
		if handler, ok := m.handlers[r.Method+" "+r.URL.Path]; ok {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// handle registers a handler for "METHOD /path".
func (m *mockServer) handle(pattern string, handler http.HandlerFunc) {
	m.handlers[pattern] = handler
}

func (m *mockServer) text(pattern, body string) {
	m.handle(pattern, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(body))
	})
}

// jsonResponse writes the server's JSON envelope.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"code": "OK", "message": "Success", "data": data})
}

// errorResponse writes an error response.
func errorResponse(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}

// runApp runs the CLI against server with a throwaway settings file and
// returns what it printed.
func runApp(t *testing.T, server *mockServer, args ...string) (string, error) {
	t.Helper()
	return runAppWithConfig(t, filepath.Join(t.TempDir(), "cli.yaml"), server, args...)
}

func runAppWithConfig(t *testing.T, configPath string, server *mockServer, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &errOut

	full := []string{"plonemetrics-cli", "--config", configPath}
	if server != nil {
		full = append(full, "--server", server.URL)
	}
	err := app.Run(append(full, args...))
	return out.String(), err
}

const sampleFeed = `# HELP objects_in_cache Objects held in the object caches, ghosts included.
# TYPE objects_in_cache gauge
objects_in_cache{plone_service_name="plone-3"} 120
# HELP load_count Objects loaded during the activity window.
# TYPE load_count counter
load_count{plone_service_name="plone-3"} 42
zope_connection_0_active_objects{plone_service_name="plone-3"} 7
# Threads traceback dump at 2026-10-18T10:00:00Z
plone_service_name{plone_service_name="plone-3"} 1
`

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
