package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthScenario(t *testing.T) {
	logs, read := captureLogs(t)
	s := New(testConfig(), logs, Deps{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "{}" {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected a request id header")
	}

	recs := read()
	if len(recs) != 2 {
		t.Fatalf("expected two records, got %d", len(recs))
	}
	if recs[0].str("message") != "API Call" || recs[0]["status_code"] != nil {
		t.Fatalf("unexpected pre-request record: %v", recs[0])
	}
	if recs[1].str("message") != "API Response" || recs[1].status() != http.StatusOK {
		t.Fatalf("unexpected post-response record: %v", recs[1])
	}
	if recs[0].str("request_id") == "" || recs[0].str("request_id") != recs[1].str("request_id") {
		t.Fatalf("expected both records to share the request id")
	}
}

func TestErrorScenarioOrdering(t *testing.T) {
	logs, read := captureLogs(t)
	s := New(testConfig(), logs, Deps{DB: fakePinger{err: errors.New("connection refused")}})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if want := `{"error":{"message":"database unavailable","status":503}}`; rec.Body.String() != want {
		t.Fatalf("expected %s, got %s", want, rec.Body.String())
	}

	recs := read()
	var msgs []string
	for _, r := range recs {
		msgs = append(msgs, r.str("message"))
	}
	if len(msgs) != 3 || msgs[0] != "API Call" || msgs[1] != "Error occurred" || msgs[2] != "API Response" {
		t.Fatalf("unexpected record sequence: %v", msgs)
	}
	if recs[1].str("error") != "database unavailable: connection refused" {
		t.Fatalf("expected the cause in the log, got %q", recs[1].str("error"))
	}
	if recs[2].status() != http.StatusServiceUnavailable {
		t.Fatalf("expected response record with 503, got %d", recs[2].status())
	}
}

func TestReadyWithoutDatabase(t *testing.T) {
	logs, _ := captureLogs(t)
	s := New(testConfig(), logs, Deps{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != `{"status":"ok"}` {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestFallbackRoutes(t *testing.T) {
	tests := []struct {
		name, method, path string
		wantStatus         int
		wantBody           string
		wantAllow          string
	}{
		{"unknown route", http.MethodGet, "/nope?x=1", http.StatusNotFound, `{"error":{"message":"Not Found - /nope?x=1","status":404}}`, ""},
		{"wrong method", http.MethodPost, "/health", http.StatusMethodNotAllowed, `{"error":{"message":"Method Not Allowed - POST /health","status":405}}`, "GET, HEAD"},
		{"wrong method on ready", http.MethodDelete, "/ready", http.StatusMethodNotAllowed, `{"error":{"message":"Method Not Allowed - DELETE /ready","status":405}}`, "GET, HEAD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs, read := captureLogs(t)
			s := New(testConfig(), logs, Deps{})

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantStatus || rec.Body.String() != tt.wantBody {
				t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
			}
			if allow := rec.Header().Get("Allow"); allow != tt.wantAllow {
				t.Fatalf("expected Allow %q, got %q", tt.wantAllow, allow)
			}
			if errs := byMessage(read(), "Error occurred"); len(errs) != 1 {
				t.Fatalf("expected one error record, got %d", len(errs))
			}
		})
	}
}

func TestHeadIsServedByGetRoute(t *testing.T) {
	logs, read := captureLogs(t)
	s := New(testConfig(), logs, Deps{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for HEAD /health, got %d: %s", rec.Code, rec.Body.String())
	}
	if errs := byMessage(read(), "Error occurred"); len(errs) != 0 {
		t.Fatalf("expected no error records, got %v", errs)
	}
}

func TestTrustProxyUsesForwardedAddress(t *testing.T) {
	logs, read := captureLogs(t)
	cfg := testConfig()
	cfg.TrustProxy = true
	s := New(cfg, logs, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.9")
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	calls := byMessage(read(), "API Call")
	if len(calls) != 1 || calls[0].str("ip") != "198.51.100.9" {
		t.Fatalf("expected forwarded ip, got %v", calls)
	}
}

func TestCORSPreflight(t *testing.T) {
	logs, read := captureLogs(t)
	s := New(testConfig(), logs, Deps{})

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://blog.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected CORS headers, got %v", rec.Header())
	}
	if posts := byMessage(read(), "API Response"); len(posts) != 1 {
		t.Fatalf("expected the preflight to be logged once, got %d", len(posts))
	}
}
