package integration

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brightpath/stagegate/internal/realtime"
	"github.com/brightpath/stagegate/model"
)

// ==========================================================================
// Realtime Coordination Tests
// ==========================================================================

func TestRealtime_PresenceOverWebsocket(t *testing.T) {
	h := NewTestHarness(t)

	connA := h.DialWS("user-a", "Ada")
	h.SendEvent(connA, "join-resource", "participant", "cand-1", nil)

	// The first joiner's snapshot is an empty room.
	evt := h.ReadEvent(connA)
	if evt.Kind != "presence-update" {
		t.Fatalf("kind = %q, want presence-update", evt.Kind)
	}
	var snapshot []model.PresenceEntry
	if err := json.Unmarshal(evt.Payload, &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snapshot) != 0 {
		t.Errorf("first joiner snapshot = %v, want empty", snapshot)
	}

	connB := h.DialWS("user-b", "Ben")
	h.SendEvent(connB, "join-resource", "participant", "cand-1", nil)

	// B's snapshot contains A but not B itself.
	evt = h.ReadEvent(connB)
	if err := json.Unmarshal(evt.Payload, &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snapshot) != 1 || snapshot[0].UserID != "user-a" {
		t.Errorf("snapshot = %v, want exactly user-a", snapshot)
	}

	// A is told that B arrived.
	evt = h.ReadEvent(connA)
	if evt.Kind != "user-joined" {
		t.Fatalf("kind = %q, want user-joined", evt.Kind)
	}
	var entry model.PresenceEntry
	if err := json.Unmarshal(evt.Payload, &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.UserID != "user-b" || entry.UserName != "Ben" {
		t.Errorf("entry = %+v", entry)
	}

	// B leaving notifies A.
	h.SendEvent(connB, "leave-resource", "participant", "cand-1", nil)
	evt = h.ReadEvent(connA)
	if evt.Kind != "user-left" {
		t.Fatalf("kind = %q, want user-left", evt.Kind)
	}
	var left struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(evt.Payload, &left); err != nil {
		t.Fatalf("decode user-left: %v", err)
	}
	if left.UserID != "user-b" {
		t.Errorf("userId = %q, want user-b", left.UserID)
	}
}

func TestRealtime_RelayReachesOtherMembersOnly(t *testing.T) {
	h := NewTestHarness(t)

	connA := h.DialWS("user-a", "Ada")
	h.SendEvent(connA, "join-resource", "participant", "cand-1", nil)
	h.ReadEvent(connA) // own snapshot

	connB := h.DialWS("user-b", "Ben")
	h.SendEvent(connB, "join-resource", "participant", "cand-1", nil)
	h.ReadEvent(connB) // own snapshot
	h.ReadEvent(connA) // user-joined for B

	h.SendEvent(connB, "typing", "participant", "cand-1", map[string]string{"field": "notes"})

	evt := h.ReadEvent(connA)
	if evt.Kind != "typing" {
		t.Fatalf("kind = %q, want typing", evt.Kind)
	}
	var payload map[string]string
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["field"] != "notes" {
		t.Errorf("payload = %v, want field=notes", payload)
	}

	// The sender never hears its own relay.
	h.ExpectNoEvent(connB, 200*time.Millisecond)
}

func TestRealtime_StatusChangeBroadcastOnAdvance(t *testing.T) {
	h := NewTestHarness(t)
	progress := h.StartProgress(t, "cand-1", "wf-onboarding")

	conn := h.DialWS("user-watcher", "Wanda")
	h.SendEvent(conn, "join-resource", "participant", "cand-1", nil)
	h.ReadEvent(conn) // own snapshot

	// Approving the intake document auto-advances and notifies the room.
	h.UploadAndDecide(t, "cand-1", "req-id-doc", "approve")

	evt := waitForKind(t, conn, "status-change")
	var status struct {
		ProgressID     string `json:"progressId"`
		CurrentStageID string `json:"currentStageId"`
		Status         string `json:"status"`
	}
	if err := json.Unmarshal(evt.Payload, &status); err != nil {
		t.Fatalf("decode status payload: %v", err)
	}
	if status.ProgressID != progress.ID {
		t.Errorf("progressId = %q, want %q", status.ProgressID, progress.ID)
	}
	if status.CurrentStageID != "st-training" {
		t.Errorf("currentStageId = %q, want st-training", status.CurrentStageID)
	}
}

// waitForKind reads events until one of the wanted kind arrives, skipping
// unrelated presence traffic.
func waitForKind(t *testing.T, conn *websocket.Conn, kind string) realtime.Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var evt realtime.Event
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("read realtime event: %v", err)
		}
		if evt.Kind == kind {
			return evt
		}
	}
	t.Fatalf("no %s event within deadline", kind)
	return realtime.Event{}
}
