package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hubdesk-platform/api/internal/audit"
	"github.com/hubdesk-platform/api/internal/config"
	"github.com/hubdesk-platform/api/internal/httpx"
	"github.com/hubdesk-platform/api/internal/importer"
	"github.com/hubdesk-platform/api/internal/store"
)

type Server struct {
	Config config.Config
	Store  store.Store
	Audit  *audit.Logger
	Logger *slog.Logger
	Runner *importer.Runner
}

func NewServer(cfg config.Config, s store.Store, auditLogger *audit.Logger, logger *slog.Logger) *Server {
	return &Server{
		Config: cfg,
		Store:  s,
		Audit:  auditLogger,
		Logger: logger,
		Runner: &importer.Runner{Store: s},
	}
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		httpx.WriteError(w, r, http.StatusServiceUnavailable, "store_unavailable", "Backing store is unreachable", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
