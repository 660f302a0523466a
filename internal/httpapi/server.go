package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stockguard/server/internal/db"
	"github.com/stockguard/server/internal/guard"
	"github.com/stockguard/server/internal/guard/service"
	"github.com/stockguard/server/internal/guard/types"
)

type Dependencies struct {
	Logger       *zap.Logger
	Addr         string
	ClearService *service.ClearService
	Snapshots    *service.SnapshotService
	Restore      *service.RestoreCoordinator
}

type Server struct {
	httpServer   *http.Server
	logger       *zap.Logger
	mux          *http.ServeMux
	clearService *service.ClearService
	snapshots    *service.SnapshotService
	restore      *service.RestoreCoordinator
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:       d.Logger,
		mux:          mux,
		clearService: d.ClearService,
		snapshots:    d.Snapshots,
		restore:      d.Restore,
	}

	mux.HandleFunc("POST /v1/clear-requests", s.handleInitiate)
	mux.HandleFunc("GET /v1/clear-requests", s.handleQueue)
	mux.HandleFunc("GET /v1/clear-requests/{id}", s.handleGet)
	mux.HandleFunc("POST /v1/clear-requests/{id}/confirm", s.handleConfirm)
	mux.HandleFunc("POST /v1/clear-requests/{id}/cancel", s.handleCancel)
	mux.HandleFunc("POST /v1/clear-requests/{id}/reject", s.handleReject)
	mux.HandleFunc("GET /v1/snapshots", s.handleListSnapshots)
	mux.HandleFunc("POST /v1/restore", s.handleRestore)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "principal headers missing")
		return
	}

	rec, err := s.clearService.Initiate(r.Context(), p)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, clearRequestView(rec))
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "principal headers missing")
		return
	}

	recs, err := s.clearService.PendingAuthorization(r.Context(), p)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	views := make([]types.ClearRequestView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, clearRequestView(rec))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "principal headers missing")
		return
	}

	rec, err := s.clearService.Get(r.Context(), r.PathValue("id"), p)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clearRequestView(rec))
}

// handleConfirm dispatches on the caller's role: initiators advance the
// first sequence, authorizers the second.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "principal headers missing")
		return
	}

	// Confirmations 1-4 carry no body; only the fifth needs a password.
	var req types.ConfirmRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	id := r.PathValue("id")

	switch p.Role {
	case guard.RoleInitiator:
		out, err := s.clearService.ConfirmAsInitiator(r.Context(), id, p, req.Password)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, types.ConfirmResponse{
			OK:      true,
			Request: clearRequestView(out),
		})
	case guard.RoleAuthorizer:
		out, err := s.clearService.ConfirmAsAuthorizer(r.Context(), id, p, req.Password)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, types.ConfirmResponse{
			OK:       true,
			Request:  clearRequestView(out),
			Executed: out.Status == "completed",
		})
	default:
		writeError(w, http.StatusForbidden, "permission_denied", "unknown role")
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "principal headers missing")
		return
	}

	rec, err := s.clearService.CancelByInitiator(r.Context(), r.PathValue("id"), p)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clearRequestView(rec))
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "principal headers missing")
		return
	}

	rec, err := s.clearService.RejectByAuthorizer(r.Context(), r.PathValue("id"), p)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clearRequestView(rec))
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "principal headers missing")
		return
	}
	if !p.CanRestore() {
		writeError(w, http.StatusForbidden, "permission_denied", "restore capability required")
		return
	}

	metas, err := s.snapshots.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := types.SnapshotListResponse{Snapshots: make([]types.SnapshotInfo, 0, len(metas))}
	for _, m := range metas {
		resp.Snapshots = append(resp.Snapshots, types.SnapshotInfo{
			ID:        m.ID,
			SizeBytes: m.SizeBytes,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "principal headers missing")
		return
	}

	var req types.RestoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	safetyCopy, err := s.restore.Restore(r.Context(), req.SnapshotID, p)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.RestoreResponse{
		OK:         true,
		SnapshotID: req.SnapshotID,
		SafetyCopy: safetyCopy,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var partial *service.PartialExecutionError

	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission_denied", err.Error())
	case errors.Is(err, service.ErrPasswordRequired):
		writeError(w, http.StatusBadRequest, "password_required", err.Error())
	case errors.Is(err, service.ErrPasswordMismatch):
		writeError(w, http.StatusForbidden, "credential_rejected", err.Error())
	case errors.Is(err, service.ErrRequestNotFound), errors.Is(err, service.ErrSnapshotNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrInvalidSnapshotID):
		writeError(w, http.StatusBadRequest, "invalid_snapshot_id", err.Error())
	case service.IsPreconditionViolation(err):
		writeError(w, http.StatusConflict, "precondition_violation", err.Error())
	case errors.As(err, &partial):
		// Irreversible risk: report exactly which tables cleared.
		s.logger.Error("partial destructive execution",
			zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "partial_execution", err.Error())
	case errors.Is(err, db.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
