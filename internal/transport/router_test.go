package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/brightpath/stagegate/internal/audit"
	"github.com/brightpath/stagegate/internal/catalog"
	"github.com/brightpath/stagegate/internal/config"
	"github.com/brightpath/stagegate/internal/document"
	"github.com/brightpath/stagegate/internal/observability"
	"github.com/brightpath/stagegate/internal/progression"
	"github.com/brightpath/stagegate/internal/realtime"
	"github.com/brightpath/stagegate/model"
)

func onboardingWorkflow() model.Workflow {
	return model.Workflow{
		ID:   "wf-onboarding",
		Name: "Candidate Onboarding",
		Stages: []model.Stage{
			{
				ID: "st-intake", WorkflowID: "wf-onboarding", Name: "Intake",
				Order: 1, AutoAdvance: true,
				Requirements: []model.Requirement{
					{ID: "req-id-doc", StageID: "st-intake", Name: "ID Document",
						Kind: model.RequirementKindDocument, IsRequired: true},
				},
			},
			{ID: "st-training", WorkflowID: "wf-onboarding", Name: "Training", Order: 2},
		},
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Defaults()
	logger := zap.NewNop()

	registry := catalog.NewRegistry([]model.Workflow{onboardingWorkflow()})
	auditStore := audit.NewMemoryStore()
	recorder := audit.NewRecorder(auditStore, logger, nil)
	hub := realtime.NewHub(cfg.Realtime.SendBufferSize, logger, nil)

	engine := progression.NewEngine(registry, progression.NewMemoryStore(), recorder, hub, nil, logger)
	docs := document.NewService(document.NewMemoryStore(), nil, nil, engine, recorder, hub, nil, logger)

	router := NewRouter(Dependencies{
		Config:    cfg,
		Logger:    logger,
		Engine:    engine,
		Documents: docs,
		AuditLog:  auditStore,
		Hub:       hub,
		Readiness: observability.ReadinessChecks{
			CatalogLoaded: func() bool { return registry.Len() > 0 },
		},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, withActor bool) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if withActor {
		req.Header.Set("X-Actor-Id", "u-recruiter")
		req.Header.Set("X-Actor-Name", "Robin Vale")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

type errorBody struct {
	Error model.ErrorEnvelope `json:"error"`
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestReadyz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestParticipantLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	// Start a progress record.
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/participants", map[string]string{
		"participantId": "cand-1",
		"workflowId":    "wf-onboarding",
	}, true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	progress := decodeBody[model.ParticipantProgress](t, resp)
	if progress.CurrentStageID != "st-intake" {
		t.Fatalf("CurrentStageID = %q", progress.CurrentStageID)
	}

	// Advancing with the requirement unmet reports the missing names.
	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/participants/"+progress.ID+"/advance", nil, true)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("advance status = %d, want 422", resp.StatusCode)
	}
	unmet := decodeBody[errorBody](t, resp)
	if unmet.Error.Code != model.ErrRequirementsUnmet {
		t.Errorf("error code = %q", unmet.Error.Code)
	}
	if len(unmet.Error.Missing) != 1 || unmet.Error.Missing[0] != "ID Document" {
		t.Errorf("missing = %v", unmet.Error.Missing)
	}

	// Upload and approve the linked document; auto-advance moves the stage.
	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/documents", map[string]string{
		"participantId": "cand-1",
		"requirementId": "req-id-doc",
		"fileName":      "passport.pdf",
		"url":           "blob://docs/passport.pdf",
	}, true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	doc := decodeBody[model.Document](t, resp)

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/documents/"+doc.ID+"/decision", map[string]string{
		"decision": "approve",
		"notes":    "verified",
	}, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("decision status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/participants/"+progress.ID, nil, false)
	got := decodeBody[model.ParticipantProgress](t, resp)
	if got.CurrentStageID != "st-training" {
		t.Errorf("CurrentStageID = %q, want st-training", got.CurrentStageID)
	}

	// A second decision conflicts.
	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/documents/"+doc.ID+"/decision", map[string]string{
		"decision": "reject",
	}, true)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second decision status = %d, want 409", resp.StatusCode)
	}
	decided := decodeBody[errorBody](t, resp)
	if decided.Error.Code != model.ErrAlreadyDecided {
		t.Errorf("error code = %q", decided.Error.Code)
	}

	// The audit trail for the progress record shows create + transition.
	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/audit/participant_progress/"+progress.ID, nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit status = %d", resp.StatusCode)
	}
	trail := decodeBody[map[string][]model.AuditEntry](t, resp)
	if len(trail["entries"]) != 2 {
		t.Errorf("audit entries = %d, want 2", len(trail["entries"]))
	}
}

func TestMutationsRequireActor(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/participants", map[string]string{
		"participantId": "cand-1",
		"workflowId":    "wf-onboarding",
	}, false)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without actor headers", resp.StatusCode)
	}
}

func TestGetProgress_notFound(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/participants/nope", nil, false)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListDocuments_requiresParticipantFilter(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/documents", nil, false)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAuditTrail_emptyIsOKNotError(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/audit/documents/never-seen", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	trail := decodeBody[map[string][]model.AuditEntry](t, resp)
	if entries := trail["entries"]; entries == nil || len(entries) != 0 {
		t.Errorf("entries = %v, want empty array", entries)
	}
}
