package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/fentz26/designboard/internal/feed"
	"github.com/fentz26/designboard/internal/guard"
	"github.com/fentz26/designboard/internal/models"
	"github.com/fentz26/designboard/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Version is reported by /health.
var Version = "dev"

// ActorHeader carries the acting operator's id.
const ActorHeader = "X-Actor-ID"

// Server provides the HTTP API for designboard.
type Server struct {
	service *Service
	events  feed.Source
	addr    string
	router  chi.Router
	server  *http.Server
	// cancel ends in-flight /events streams, which never go idle on their own.
	cancel context.CancelFunc
}

// NewServer creates a new HTTP server. events may be nil, in which case
// /events is not served.
func NewServer(service *Service, events feed.Source, addr string) *Server {
	s := &Server{
		service: service,
		events:  events,
		addr:    addr,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.events != nil {
		r.Get("/events", feed.ServeSSE(s.events))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireActor)

		r.Get("/me", s.me)
		r.Get("/snapshot", s.snapshot)
		r.Get("/tasks", s.listTasks)
		r.Post("/tasks", s.createTask)
		r.Route("/tasks/{id}", func(r chi.Router) {
			r.Get("/", s.getTask)
			r.Delete("/", s.deleteTask)
			r.Get("/history", s.history)
			r.Put("/status", s.updateStatus)
			r.Post("/transition", s.transition)
			r.Post("/accept", s.acceptTask)
			r.Put("/order-number", s.updateOrderNumber)
			r.Post("/send-to-designer", s.sendToDesigner)
			r.Put("/design-files", s.setDesignFiles)
			r.Post("/change-requests", s.requestChange)
		})
		r.Post("/change-requests/{id}/resolve", s.resolveChangeRequest)
	})
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the HTTP server.
func (s *Server) Start() error {
	base, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.router,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: /events streams indefinitely.
		BaseContext: func(net.Listener) context.Context { return base },
	}

	log.Printf("Starting designboard daemon on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.cancel()
	return s.server.Shutdown(ctx)
}

// requireActor resolves X-Actor-ID and stores it in the request context.
func (s *Server) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(ActorHeader)
		if _, err := s.service.Actor(id); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), id)))
	})
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := HealthResponse{OK: true, DB: "ok", Version: Version, Time: time.Now().UTC().Format(time.RFC3339)}
	status := http.StatusOK
	if err := s.service.Ping(r.Context()); err != nil {
		resp.OK = false
		resp.DB = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error          string `json:"error"`
	Kind           string `json:"kind,omitempty"`
	Guard          string `json:"guard,omitempty"`
	OrderNumber    string `json:"order_number,omitempty"`
	ConflictTaskID string `json:"conflict_task_id,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var v *guard.Violation
	var a *guard.Abort
	switch {
	case errors.As(err, &v):
		resp.Kind, resp.Guard = string(v.Kind), v.Guard
	case errors.As(err, &a):
		resp.Kind, resp.OrderNumber, resp.ConflictTaskID = string(a.Kind), a.OrderNumber, a.ConflictTaskID
	case errors.Is(err, ErrConfirmationRequired):
		resp.Kind = "confirmation_required"
	case errors.Is(err, store.ErrConcurrentModification):
		resp.Kind = "concurrent_modification"
	case errors.Is(err, store.ErrTerminalStatus):
		resp.Kind, resp.Guard = string(guard.TerminalStatus), guard.CheckTerminalStatus
	}
	writeJSON(w, statusFor(err), resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(ErrInvalidInput, err)
	}
	return nil
}

// me returns the resolved actor so clients can project their own board.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	actor, err := s.service.Actor(ActorID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actor)
}

// --- Task Handlers ---

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tasks, err := s.service.ListTasks(r.Context(), store.TaskFilter{
		Status:     models.Status(q.Get("status")),
		OrderID:    q.Get("order"),
		CampaignID: q.Get("campaign"),
		CreatedBy:  q.Get("creator"),
		AssignedTo: q.Get("assignee"),
		LeadID:     q.Get("lead"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req store.NewTask
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	task, err := s.service.CreateTask(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.service.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	var change models.StatusChange
	if err := decode(r, &change); err != nil {
		writeError(w, err)
		return
	}
	if err := s.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), change); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TransitionRequest is the body of POST /tasks/{id}/transition.
type TransitionRequest struct {
	Target    string `json:"target"`
	Confirmed bool   `json:"confirmed"`
}

// TransitionResponse reports an applied transition.
type TransitionResponse struct {
	Decision string         `json:"decision"`
	Guard    string         `json:"guard"`
	Effects  []guard.Effect `json:"effects"`
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	target, ok := models.ParseBucket(req.Target)
	if !ok {
		writeError(w, errors.Join(ErrInvalidInput, errors.New("unknown column "+req.Target)))
		return
	}
	res, err := s.service.Transition(r.Context(), ActorID(r.Context()), chi.URLParam(r, "id"), target, req.Confirmed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TransitionResponse{Decision: res.Decision.String(), Guard: res.Guard, Effects: res.Effects})
}

func (s *Server) acceptTask(w http.ResponseWriter, r *http.Request) {
	if err := s.service.AcceptTask(r.Context(), chi.URLParam(r, "id"), ActorID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type orderNumberRequest struct {
	OrderNumber string `json:"order_number"`
}

func (s *Server) updateOrderNumber(w http.ResponseWriter, r *http.Request) {
	var req orderNumberRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.service.UpdateOrderNumber(r.Context(), chi.URLParam(r, "id"), req.OrderNumber); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sendToDesigner(w http.ResponseWriter, r *http.Request) {
	if err := s.service.SendToDesigner(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type designFilesRequest struct {
	DesignFiles []string `json:"design_files"`
}

func (s *Server) setDesignFiles(w http.ResponseWriter, r *http.Request) {
	var req designFilesRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.service.SetDesignFiles(r.Context(), chi.URLParam(r, "id"), req.DesignFiles); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Change Request Handlers ---

type changeRequestRequest struct {
	Description string `json:"description"`
}

func (s *Server) requestChange(w http.ResponseWriter, r *http.Request) {
	var req changeRequestRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	cr, err := s.service.RequestChange(r.Context(), chi.URLParam(r, "id"), req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cr)
}

func (s *Server) resolveChangeRequest(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ResolveChangeRequest(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
