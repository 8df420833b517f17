package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func gatherValue(t *testing.T, reg *Registry, name string, visit func(labels map[string]string, value float64)) bool {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		found = true
		if visit == nil {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			v := m.GetGauge().GetValue()
			if m.GetCounter() != nil {
				v = m.GetCounter().GetValue()
			}
			visit(labels, v)
		}
	}
	return found
}

func TestHTTPMiddleware_RecordsRequests(t *testing.T) {
	reg := NewRegistry()
	wrapped := HTTPMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest("GET", "/api/runs", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if !gatherValue(t, reg, "http_requests_total", nil) {
		t.Error("expected http_requests_total to be recorded")
	}
	if !gatherValue(t, reg, "http_request_duration_seconds", nil) {
		t.Error("expected http_request_duration_seconds to be recorded")
	}
}

func TestHTTPMiddleware_PathLabelUsesRoutePattern(t *testing.T) {
	reg := NewRegistry()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := HTTPMiddleware(reg)(mux)

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest("GET", "/api/runs/0b52a1b0", nil))

	sawPattern := false
	gatherValue(t, reg, "http_requests_total", func(labels map[string]string, _ float64) {
		if labels["path"] == "GET /api/runs/{id}" {
			sawPattern = true
		}
		if labels["path"] == "/api/runs/0b52a1b0" {
			t.Error("raw run id leaked into the path label")
		}
	})
	if !sawPattern {
		t.Error("expected the route pattern as the path label")
	}
}

func TestHTTPMiddleware_TracksInFlight(t *testing.T) {
	reg := NewRegistry()

	inFlightDuring := float64(-1)
	wrapped := HTTPMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gatherValue(t, reg, "http_requests_in_flight", func(_ map[string]string, v float64) {
			inFlightDuring = v
		})
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))

	if inFlightDuring != 1 {
		t.Errorf("expected in-flight 1 during request, got %v", inFlightDuring)
	}
	gatherValue(t, reg, "http_requests_in_flight", func(_ map[string]string, v float64) {
		if v != 0 {
			t.Errorf("expected in-flight 0 after request, got %v", v)
		}
	})
}

func TestHTTPMiddleware_StatusClasses(t *testing.T) {
	reg := NewRegistry()
	wrapped := HTTPMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest("GET", "/api/runs/missing", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	gatherValue(t, reg, "http_requests_total", func(labels map[string]string, _ float64) {
		if labels["status"] != "4xx" {
			t.Errorf("expected status label 4xx, got %s", labels["status"])
		}
	})
}
