package command

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestObjectGet(t *testing.T) {
	server := newMockServer(t)
	server.handle("GET /objects/42", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("pickled-state"))
	})
	server.handle("GET /objects/7", func(w http.ResponseWriter, _ *http.Request) {
		errorResponse(w, http.StatusNotFound, "PM-STOR-4040", "object not found")
	})

	out, err := runApp(t, server, "object", "get", "42")
	if err != nil {
		t.Fatal(err)
	}
	if out != "pickled-state" {
		t.Errorf("output = %q", out)
	}

	if _, err := runApp(t, server, "object", "get", "7"); err == nil || !strings.Contains(err.Error(), "PM-STOR-4040") {
		t.Errorf("expected not found error, got %v", err)
	}
	if _, err := runApp(t, server, "object", "get", "abc"); err == nil {
		t.Error("expected error for invalid oid")
	}
	if _, err := runApp(t, server, "object", "get"); err == nil {
		t.Error("expected error without oid")
	}
}

func TestObjectPut(t *testing.T) {
	var stored string
	server := newMockServer(t)
	server.handle("PUT /objects/9", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		stored = string(data)
		jsonResponse(w, http.StatusOK, map[string]any{"oid": "9", "size": len(data)})
	})

	path := filepath.Join(t.TempDir(), "state.bin")
	if err := os.WriteFile(path, []byte("new-state"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, server, "-o", "json", "object", "put", "--file", path, "9")
	if err != nil {
		t.Fatal(err)
	}
	if stored != "new-state" {
		t.Errorf("server received %q", stored)
	}
	if !strings.Contains(out, `"oid": "9"`) || !strings.Contains(out, `"size": 9`) {
		t.Errorf("unexpected output:\n%s", out)
	}
}
