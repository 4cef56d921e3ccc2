// Package integration provides a reusable test harness for end-to-end
// integration testing of the stagegate server. It starts a full HTTP server
// with in-memory stores, a loaded workflow catalog, and the realtime hub.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/brightpath/stagegate/internal/audit"
	"github.com/brightpath/stagegate/internal/catalog"
	"github.com/brightpath/stagegate/internal/config"
	"github.com/brightpath/stagegate/internal/document"
	"github.com/brightpath/stagegate/internal/observability"
	"github.com/brightpath/stagegate/internal/progression"
	"github.com/brightpath/stagegate/internal/realtime"
	"github.com/brightpath/stagegate/internal/transport"
	"github.com/brightpath/stagegate/model"
)

// TestHarness encapsulates a fully wired stagegate instance with in-memory
// stores for integration testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server

	// Internal components exposed for advanced test scenarios.
	Registry      *catalog.Registry
	ProgressStore *progression.MemoryStore
	DocumentStore *document.MemoryStore
	AuditStore    *audit.MemoryStore
	Engine        *progression.Engine
	Documents     *document.Service
	Hub           *realtime.Hub

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	workflows      []model.Workflow
	handlerTimeout time.Duration
	sendBufferSize int
}

// WithWorkflows replaces the default workflow fixture in the catalog.
func WithWorkflows(workflows ...model.Workflow) HarnessOption {
	return func(c *harnessConfig) {
		c.workflows = workflows
	}
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// WithSendBuffer sets the realtime per-session send buffer size.
func WithSendBuffer(n int) HarnessOption {
	return func(c *harnessConfig) {
		c.sendBufferSize = n
	}
}

// NewTestHarness creates and starts a full stagegate test instance. The
// server is automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		handlerTimeout: 10 * time.Second,
		sendBufferSize: 32,
	}
	for _, opt := range opts {
		opt(hc)
	}
	if len(hc.workflows) == 0 {
		hc.workflows = []model.Workflow{OnboardingWorkflow()}
	}

	cfg := config.Defaults()
	cfg.Server.HandlerTimeout = hc.handlerTimeout
	cfg.Realtime.SendBufferSize = hc.sendBufferSize

	logger := zap.NewNop()

	h := &TestHarness{
		t:             t,
		Registry:      catalog.NewRegistry(hc.workflows),
		ProgressStore: progression.NewMemoryStore(),
		DocumentStore: document.NewMemoryStore(),
		AuditStore:    audit.NewMemoryStore(),
		cfg:           cfg,
	}

	recorder := audit.NewRecorder(h.AuditStore, logger, nil)
	h.Hub = realtime.NewHub(cfg.Realtime.SendBufferSize, logger, nil)
	h.Engine = progression.NewEngine(h.Registry, h.ProgressStore, recorder, h.Hub, nil, logger)
	h.Documents = document.NewService(h.DocumentStore, nil, nil, h.Engine, recorder, h.Hub, nil, logger)

	router := transport.NewRouter(transport.Dependencies{
		Config:    cfg,
		Logger:    logger,
		Engine:    h.Engine,
		Documents: h.Documents,
		AuditLog:  h.AuditStore,
		Hub:       h.Hub,
		Readiness: observability.ReadinessChecks{
			CatalogLoaded: func() bool { return h.Registry.Len() > 0 },
		},
	})

	h.server = httptest.NewServer(router)
	t.Cleanup(func() {
		h.server.Close()
	})

	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// --- HTTP client helpers ---

// GET performs a GET request with the given actor identity.
func (h *TestHarness) GET(path string, actor model.Actor) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, actor)
}

// POST performs a POST request with a JSON body and the given actor identity.
func (h *TestHarness) POST(path string, body any, actor model.Actor) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, actor)
}

func (h *TestHarness) doRequest(method, path string, body any, actor model.Actor) *http.Response {
	h.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}

	if actor.ID != "" {
		req.Header.Set("X-Actor-Id", actor.ID)
		req.Header.Set("X-Actor-Name", actor.Name)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// --- Websocket helpers ---

// DialWS opens a websocket connection identified by the given user. The
// connection is closed when the test completes.
func (h *TestHarness) DialWS(userID, userName string) *websocket.Conn {
	h.t.Helper()

	wsURL := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/v1/ws?" + url.Values{
		"userId":   {userID},
		"userName": {userName},
	}.Encode()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		h.t.Fatalf("dial websocket as %s: %v", userID, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	h.t.Cleanup(func() {
		conn.Close()
	})
	return conn
}

// SendEvent writes a client event onto the connection.
func (h *TestHarness) SendEvent(conn *websocket.Conn, kind, resourceType, resourceID string, payload any) {
	h.t.Helper()

	msg := map[string]any{
		"kind":         kind,
		"resourceType": resourceType,
		"resourceId":   resourceID,
	}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		h.t.Fatalf("write %s event: %v", kind, err)
	}
}

// ReadEvent reads the next event from the connection, failing the test if
// nothing arrives within the deadline.
func (h *TestHarness) ReadEvent(conn *websocket.Conn) realtime.Event {
	h.t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var evt realtime.Event
	if err := conn.ReadJSON(&evt); err != nil {
		h.t.Fatalf("read realtime event: %v", err)
	}
	return evt
}

// ExpectNoEvent asserts that no event arrives on the connection within the
// given window.
func (h *TestHarness) ExpectNoEvent(conn *websocket.Conn, window time.Duration) {
	h.t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(window))
	var evt realtime.Event
	if err := conn.ReadJSON(&evt); err == nil {
		h.t.Fatalf("unexpected event %q for %s/%s", evt.Kind, evt.ResourceType, evt.ResourceID)
	}
}

// --- Default fixtures ---

// CoordinatorActor returns the identity used for progression mutations.
func CoordinatorActor() model.Actor {
	return model.Actor{ID: "user-coordinator", Name: "Casey Morgan"}
}

// ReviewerActor returns the identity used for document decisions.
func ReviewerActor() model.Actor {
	return model.Actor{ID: "user-reviewer", Name: "Robin Vale"}
}

// NoActor returns an empty identity; requests carry no actor headers.
func NoActor() model.Actor {
	return model.Actor{}
}

// OnboardingWorkflow returns the default two-stage workflow fixture. The
// intake stage auto-advances once its ID document is approved; the training
// stage requires a signed agreement and a manual advance.
func OnboardingWorkflow() model.Workflow {
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
			{
				ID: "st-training", WorkflowID: "wf-onboarding", Name: "Training",
				Order: 2,
				Requirements: []model.Requirement{
					{ID: "req-agreement", StageID: "st-training", Name: "Signed Agreement",
						Kind: model.RequirementKindDocument, IsRequired: true},
				},
			},
		},
	}
}

// StartProgress creates a progress record over HTTP and returns it.
func (h *TestHarness) StartProgress(t *testing.T, participantID, workflowID string) model.ParticipantProgress {
	t.Helper()

	resp := h.POST("/v1/participants", map[string]string{
		"participantId": participantID,
		"workflowId":    workflowID,
	}, CoordinatorActor())
	var progress model.ParticipantProgress
	h.AssertJSON(t, resp, http.StatusCreated, &progress)
	return progress
}

// UploadAndDecide uploads a document for the requirement and applies the
// decision, returning the decided document.
func (h *TestHarness) UploadAndDecide(t *testing.T, participantID, requirementID, decision string) model.Document {
	t.Helper()

	resp := h.POST("/v1/documents", map[string]string{
		"participantId": participantID,
		"requirementId": requirementID,
		"fileName":      fmt.Sprintf("%s.pdf", requirementID),
		"url":           fmt.Sprintf("blob://docs/%s.pdf", requirementID),
	}, CoordinatorActor())
	var doc model.Document
	h.AssertJSON(t, resp, http.StatusCreated, &doc)

	resp = h.POST("/v1/documents/"+doc.ID+"/decision", map[string]string{
		"decision": decision,
	}, ReviewerActor())
	var decided model.Document
	h.AssertJSON(t, resp, http.StatusOK, &decided)
	return decided
}
