package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context, *readpref.ReadPref) error { return f.err }

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name       string
		pingErr    error
		uploads    string
		wantCode   int
		wantStatus string
		wantMedia  string
	}{
		{"all ok", nil, dir, http.StatusOK, "ok", "ok"},
		{"no media check", nil, "", http.StatusOK, "ok", ""},
		{"db down", errors.New("no primary"), dir, http.StatusServiceUnavailable, "degraded", "ok"},
		{"media missing", nil, filepath.Join(dir, "missing"), http.StatusServiceUnavailable, "degraded", "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(fakePinger{tt.pingErr}, tt.uploads, zap.NewNop())
			rec := httptest.NewRecorder()
			h.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			resp := decode(t, rec)
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Services["media"] != tt.wantMedia {
				t.Errorf("media = %q, want %q", resp.Services["media"], tt.wantMedia)
			}
		})
	}
}

func TestReady(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(fakePinger{}, "", zap.NewNop()).Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ready code = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewHandler(fakePinger{errors.New("down")}, "", zap.NewNop()).Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("not-ready code = %d, want 503", rec.Code)
	}
}

func TestMountRootEndpoints(t *testing.T) {
	r := chi.NewRouter()
	MountRootEndpoints(r, NewHandler(fakePinger{}, "", zap.NewNop()))

	for _, path := range []string{"/ready", "/readyz", "/livez"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, rec.Code)
		}
	}
}
