package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
)

type stubChecker struct {
	err error
}

func (s stubChecker) HealthCheck(_ context.Context) error { return s.err }

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	HandleHealth()(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var body HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Errorf("Status = %q", body.Status)
	}
}

func TestHandleReady_allOK(t *testing.T) {
	checks := ReadinessChecks{
		CatalogLoaded: func() bool { return true },
		ProgressStore: stubChecker{},
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/readyz", nil)
	HandleReady(checks)(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var body ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ready" {
		t.Errorf("Status = %q", body.Status)
	}
	if body.Checks["catalog"].Status != "ok" {
		t.Errorf("catalog check = %+v", body.Checks["catalog"])
	}
}

func TestHandleReady_storeFailure(t *testing.T) {
	checks := ReadinessChecks{
		CatalogLoaded: func() bool { return true },
		ProgressStore: stubChecker{err: errors.New("connection refused")},
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/readyz", nil)
	HandleReady(checks)(rec, req)

	if rec.Code != 503 {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "not_ready" {
		t.Errorf("Status = %q", body.Status)
	}
	if body.Checks["progress_store"].Error == "" {
		t.Error("expected progress_store error message")
	}
}

func TestHandleReady_noCatalog(t *testing.T) {
	checks := ReadinessChecks{
		CatalogLoaded: func() bool { return false },
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/readyz", nil)
	HandleReady(checks)(rec, req)

	if rec.Code != 503 {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
