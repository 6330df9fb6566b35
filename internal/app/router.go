package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	openapimiddleware "github.com/oapi-codegen/nethttp-middleware"

	"github.com/hubdesk-platform/api/internal/audit"
	"github.com/hubdesk-platform/api/internal/config"
	"github.com/hubdesk-platform/api/internal/handlers"
	"github.com/hubdesk-platform/api/internal/httpx"
	"github.com/hubdesk-platform/api/internal/middleware"
	"github.com/hubdesk-platform/api/internal/store"
)

// NewRouter assembles the HTTP surface: shared middleware, OpenAPI
// request validation and every route of the API.
func NewRouter(cfg config.Config, s store.Store, logger *slog.Logger) (http.Handler, error) {
	specPath := "openapi.yaml"
	if _, err := os.Stat(specPath); err != nil {
		return nil, fmt.Errorf("openapi spec not found at %s: %w", specPath, err)
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(cfg.Env))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.LimitBodyBytesWithOverrides(cfg.APIMaxBodyBytes, []middleware.BodyLimitOverride{
		{PathPrefix: "/imports", MaxBytes: cfg.ImportMaxFileBytes},
	}))

	api := chi.NewRouter()
	api.Use(openapimiddleware.OapiRequestValidatorWithOptions(doc, &openapimiddleware.Options{
		SilenceServersWarning: true,
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			requestID := w.Header().Get("X-Request-Id")
			httpx.WriteJSON(w, statusCode, httpx.ErrorEnvelope{
				Error:     httpx.ErrorBody{Code: "validation_error", Message: message},
				RequestID: requestID,
			})
		},
	}))

	auditLogger := audit.NewLogger(s)
	h := handlers.NewServer(cfg, s, auditLogger, logger)

	importLimiter := middleware.NewIPRateLimiterWithMaxEntries(10, time.Minute, cfg.RateLimitMaxIPs)

	api.Group(func(public chi.Router) {
		public.Get("/health", h.GetHealth)
	})

	api.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireToken(cfg.APIToken))

		protected.Group(func(imports chi.Router) {
			imports.Use(importLimiter.Middleware("Too many import requests"))
			imports.Post("/imports/preview", h.PostImportsPreview)
			imports.Post("/imports/dry-run", h.PostImportsDryRun)
			imports.Post("/imports/apply", h.PostImportsApply)
		})

		protected.Get("/imports/{importRunId}", withRunID(h.GetImportsImportRunID))
		protected.Get("/imports/{importRunId}/errors.csv", withRunID(h.GetImportsImportRunIDErrorsCsv))

		protected.Get("/customers", h.GetCustomers)
		protected.Post("/customers", h.PostCustomers)
		protected.Get("/customers/{customerId}", func(w http.ResponseWriter, r *http.Request) {
			h.GetCustomersCustomerID(w, r, chi.URLParam(r, "customerId"))
		})
		protected.Get("/services", h.GetServices)
		protected.Get("/contracts", h.GetContracts)
		protected.Get("/rooms/occupancy", h.GetRoomsOccupancy)

		protected.Get("/exports/customers.csv", h.GetExportsCustomersCsv)
		protected.Get("/exports/contracts.csv", h.GetExportsContractsCsv)
	})

	r.Mount("/api", api)
	return r, nil
}

func withRunID(handler func(http.ResponseWriter, *http.Request, uuid.UUID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := uuid.Parse(chi.URLParam(r, "importRunId"))
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "importRunId must be a UUID", nil)
			return
		}
		handler(w, r, runID)
	}
}
