package inventory

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ScanInventory/pkg/kit"
)

const (
	maxMutateBody = 1 << 20
	readyTimeout  = 1 * time.Second
)

type Server struct {
	Service *Service
	Log     *zap.Logger

	// MutationLimiter, when set, guards POST and DELETE.
	MutationLimiter *kit.IPRateLimiter
}

type mutateReq struct {
	Code   string `json:"codigo"`
	Name   string `json:"nombre,omitempty"`
	Action string `json:"accion"`
	Amount *int   `json:"cantidad,omitempty"`
}

type mutateResp struct {
	Success   bool       `json:"success"`
	Inventory Collection `json:"inventario"`
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.readyz)

	r.Route("/api/inventario", func(r chi.Router) {
		r.Get("/", s.list)
		r.Get("/{codigo}", s.get)

		r.Group(func(mr chi.Router) {
			mr.Use(s.MutationLimiter.Middleware)
			mr.Post("/", s.mutate)
			mr.Delete("/", s.delete)
			mr.Delete("/{codigo}", s.delete)
		})
	})

	return r
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.Service.Store.Ping(ctx); err != nil {
		s.logger().Warn("readyz failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	c, err := s.Service.Fetch(r.Context())
	if err != nil {
		s.writeServiceError(w, r, "list inventory failed", err, "")
		return
	}
	kit.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "codigo")

	p, ok, err := s.Service.Lookup(r.Context(), code)
	if err != nil {
		s.writeServiceError(w, r, "lookup product failed", err, code)
		return
	}
	if !ok {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"codigo": code})
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) mutate(w http.ResponseWriter, r *http.Request) {
	var req mutateReq
	if err := kit.DecodeJSON(w, r, maxMutateBody, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	c, err := s.Service.Mutate(r.Context(), MutateRequest{
		Code:   req.Code,
		Name:   req.Name,
		Action: req.Action,
		Amount: req.Amount,
	})
	if err != nil {
		s.writeServiceError(w, r, "mutate inventory failed", err, req.Code)
		return
	}
	kit.WriteJSON(w, http.StatusOK, mutateResp{Success: true, Inventory: c})
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "codigo")
	if code == "" {
		code = r.URL.Query().Get("codigo")
	}

	c, err := s.Service.Delete(r.Context(), code)
	if err != nil {
		s.writeServiceError(w, r, "delete product failed", err, code)
		return
	}
	kit.WriteJSON(w, http.StatusOK, mutateResp{Success: true, Inventory: c})
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error, code string) {
	switch {
	case IsInputError(err):
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
	case isTimeoutErr(err):
		s.logger().Warn(msg, zap.Error(err), zap.String("code", code))
		kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
	default:
		s.logger().Error(msg, zap.Error(err), zap.String("code", code))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
