package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fentz26/designboard/internal/controlplane"
	"github.com/fentz26/designboard/internal/store"
)

func withAPI(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	prevAddr, prevActor := apiAddr, actorID
	apiAddr, actorID = srv.URL, "dana"
	t.Cleanup(func() { apiAddr, actorID = prevAddr, prevActor })
}

func TestAPIDoSendsActorAndBody(t *testing.T) {
	var gotActor, gotMethod, gotPath string
	var gotBody map[string]string
	withAPI(t, func(w http.ResponseWriter, r *http.Request) {
		gotActor = r.Header.Get(controlplane.ActorHeader)
		gotMethod, gotPath = r.Method, r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	})

	if _, err := apiPut(taskPath("t 1", "/order-number"), map[string]string{"order_number": "PO-7"}); err != nil {
		t.Fatalf("apiPut failed: %v", err)
	}
	if gotActor != "dana" {
		t.Errorf("Expected actor header dana, got %q", gotActor)
	}
	if gotMethod != http.MethodPut || gotPath != "/tasks/t 1/order-number" {
		t.Errorf("Unexpected request %s %s", gotMethod, gotPath)
	}
	if gotBody["order_number"] != "PO-7" {
		t.Errorf("Expected order number in body, got %v", gotBody)
	}
}

func TestAPIDoParsesErrorResponse(t *testing.T) {
	withAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(controlplane.ErrorResponse{
			Error:          "order PO-1 already completed",
			Kind:           "duplicate_order_number",
			OrderNumber:    "PO-1",
			ConflictTaskID: "0123456789",
		})
	})

	_, err := apiPost(taskPath("t1", "/transition"), controlplane.TransitionRequest{Target: "completed"})
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected apiError, got %v", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Response.OrderNumber != "PO-1" {
		t.Errorf("Unexpected error %+v", apiErr)
	}

	explained := explainMoveError("t1", err)
	if !strings.Contains(explained.Error(), "already completed on task 01234567") {
		t.Errorf("Expected conflict hint, got %q", explained)
	}
	if !errors.As(explained, &apiErr) {
		t.Error("Expected explained error to wrap the apiError")
	}
}

func TestAPIDoPlainTextError(t *testing.T) {
	withAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := apiGet("/snapshot")
	if err == nil || err.Error() != "API error (500): boom" {
		t.Errorf("Expected plain text error, got %v", err)
	}
}

func TestCheckHealth(t *testing.T) {
	withAPI(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(controlplane.HealthResponse{OK: true, DB: "ok", Version: "test"})
	})

	health, err := CheckHealth(apiClient)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.OK || health.Version != "test" {
		t.Errorf("Unexpected health %+v", health)
	}
	if !isDaemonRunning() {
		t.Error("Expected daemon to be reported running")
	}
}

func TestListQuery(t *testing.T) {
	if got := listQuery(store.TaskFilter{}); got != "" {
		t.Errorf("Expected empty query, got %q", got)
	}
	got := listQuery(store.TaskFilter{Status: "pending", AssignedTo: "dana"})
	if got != "?assignee=dana&status=pending" {
		t.Errorf("Unexpected query %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Acme Screen Printing", 10); got != "Acme Sc..." {
		t.Errorf("Expected truncated name, got %q", got)
	}
	if got := truncateID("abc"); got != "abc" {
		t.Errorf("Expected short id unchanged, got %q", got)
	}
}
