package command

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func TestScrape_Table(t *testing.T) {
	server := newMockServer(t)
	server.text("GET /metrics", sampleFeed)

	out, err := runApp(t, server, "scrape")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}

	got := lines(out)
	if len(got) != 5 {
		t.Fatalf("expected header plus 4 rows, got %d:\n%s", len(got), out)
	}
	if !strings.HasPrefix(got[0], "NAME") || strings.Contains(got[0], "TYPE") {
		t.Errorf("unexpected header %q", got[0])
	}
	if !strings.Contains(got[1], "objects_in_cache") || !strings.Contains(got[1], `plone_service_name="plone-3"`) || !strings.HasSuffix(got[1], "120") {
		t.Errorf("unexpected first row %q", got[1])
	}
	if !strings.HasPrefix(got[4], "plone_service_name") {
		t.Errorf("identity marker should stay last, got %q", got[4])
	}
	if strings.Contains(out, "Threads traceback") {
		t.Error("comments must not be shown without --dump")
	}
}

func TestScrape_Options(t *testing.T) {
	server := newMockServer(t)
	server.text("GET /metrics", sampleFeed)

	t.Run("raw", func(t *testing.T) {
		out, err := runApp(t, server, "scrape", "--raw")
		if err != nil {
			t.Fatal(err)
		}
		if out != sampleFeed {
			t.Errorf("raw output differs:\n%s", out)
		}
	})

	t.Run("filter and dump", func(t *testing.T) {
		out, err := runApp(t, server, "--wide", "scrape", "--filter", "load", "--dump")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "load_count") || strings.Contains(out, "objects_in_cache") {
			t.Errorf("filter not applied:\n%s", out)
		}
		if !strings.Contains(out, "counter") {
			t.Errorf("wide output should include the type:\n%s", out)
		}
		if !strings.HasSuffix(out, "Threads traceback dump at 2026-10-18T10:00:00Z\n") {
			t.Errorf("dump should follow the table:\n%s", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		out, err := runApp(t, server, "-o", "json", "scrape")
		if err != nil {
			t.Fatal(err)
		}
		var metrics []ScrapedMetric
		if err := json.Unmarshal([]byte(out), &metrics); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if len(metrics) != 4 {
			t.Fatalf("expected 4 metrics, got %d", len(metrics))
		}
		m := metrics[0]
		if m.Name != "objects_in_cache" || m.Value != "120" || m.Type != "gauge" || m.Labels["plone_service_name"] != "plone-3" {
			t.Errorf("unexpected first metric %+v", m)
		}
		if metrics[2].Type != "" {
			t.Errorf("untyped metric got type %q", metrics[2].Type)
		}
	})
}

func TestScrape_CustomPathAndToken(t *testing.T) {
	server := newMockServer(t)
	server.handle("GET /zope/metrics", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			errorResponse(w, http.StatusUnauthorized, "PM-SYS-4010", "unauthorized")
			return
		}
		w.Write([]byte(sampleFeed))
	})

	if _, err := runApp(t, server, "--metrics-path", "/zope/metrics", "scrape"); err == nil || !strings.Contains(err.Error(), "PM-SYS-4010") {
		t.Errorf("expected unauthorized error, got %v", err)
	}
	if _, err := runApp(t, server, "--metrics-path", "/zope/metrics", "--token", "s3cret", "scrape"); err != nil {
		t.Errorf("with token: %v", err)
	}
}

func TestScrape_Errors(t *testing.T) {
	server := newMockServer(t)
	server.handle("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Error-Code", "PM-COLL-5000")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("all collectors failed\n"))
	})

	_, err := runApp(t, server, "scrape")
	if err == nil || !strings.Contains(err.Error(), "[PM-COLL-5000] all collectors failed") {
		t.Errorf("unexpected error %v", err)
	}

	broken := newMockServer(t)
	broken.text("GET /metrics", "not a metric line at all\n")
	if _, err := runApp(t, broken, "scrape"); err == nil || !strings.Contains(err.Error(), "parse feed") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestLabelSet_String(t *testing.T) {
	if got := (labelSet{}).String(); got != "-" {
		t.Errorf("empty = %q", got)
	}
	got := labelSet{"b": "2", "a": `x"y`}.String()
	if got != `a="x\"y",b="2"` {
		t.Errorf("String() = %q", got)
	}
}
