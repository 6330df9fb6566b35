package handlers

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/hubdesk-platform/api/internal/audit"
	"github.com/hubdesk-platform/api/internal/httpx"
	"github.com/hubdesk-platform/api/internal/importer"
	"github.com/hubdesk-platform/api/internal/middleware"
	"github.com/hubdesk-platform/api/internal/model"
	"github.com/hubdesk-platform/api/internal/store"
)

const previewSampleRows = 5

type importOptionsPayload struct {
	Source  string            `json:"source"`
	Mapping map[string]string `json:"mapping"`
}

type importRowErrorPayload struct {
	RowIndex int          `json:"rowIndex"`
	Message  string       `json:"message"`
	Row      model.RawRow `json:"row,omitempty"`
}

type importDownloadURLs struct {
	ErrorsCsv string `json:"errorsCsv"`
}

type importRunResponse struct {
	ImportRunID  openapi_types.UUID      `json:"importRunId"`
	Source       string                  `json:"source"`
	Filename     string                  `json:"filename"`
	Mode         string                  `json:"mode"`
	Status       string                  `json:"status"`
	Summary      model.ImportRunSummary  `json:"summary"`
	TopErrors    []importRowErrorPayload `json:"topErrors"`
	DownloadURLs importDownloadURLs      `json:"downloadUrls"`
	CreatedAt    time.Time               `json:"createdAt"`
	CompletedAt  *time.Time              `json:"completedAt,omitempty"`
	RequestID    string                  `json:"requestId"`
}

type importPreviewResponse struct {
	Headers       []string                  `json:"headers"`
	SampleRows    []model.RawRow            `json:"sampleRows"`
	Mapping       importer.Mapping          `json:"mapping"`
	Suggestions   map[importer.Field]string `json:"suggestions,omitempty"`
	MissingFields []importer.Field          `json:"missingFields"`
	RowsTotal     int                       `json:"rowsTotal"`
	RequestID     string                    `json:"requestId"`
}

type parsedImportUpload struct {
	filename   string
	fileSHA256 string
	options    importOptionsPayload
	table      *importer.Table
}

// PostImportsPreview parses the file, auto-detects a column mapping and
// returns it together with a row sample so the UI can let the user
// adjust the mapping before running the import.
func (s *Server) PostImportsPreview(w http.ResponseWriter, r *http.Request) {
	table, appErr := s.parseUploadedFile(r)
	if appErr != nil {
		httpx.WriteError(w, r, appErr.Status, appErr.Code, appErr.Message, appErr.Details)
		return
	}

	mapping := importer.DetectMapping(table.Headers)
	sample := table.Rows
	if len(sample) > previewSampleRows {
		sample = sample[:previewSampleRows]
	}

	httpx.WriteJSON(w, http.StatusOK, importPreviewResponse{
		Headers:       table.Headers,
		SampleRows:    sample,
		Mapping:       mapping,
		Suggestions:   importer.Suggest(table.Headers, mapping),
		MissingFields: mapping.MissingRequired(),
		RowsTotal:     len(table.Rows),
		RequestID:     middleware.RequestIDFromContext(r.Context()),
	})
}

func (s *Server) PostImportsDryRun(w http.ResponseWriter, r *http.Request) {
	s.handleImport(w, r, model.ImportModeDryRun)
}

func (s *Server) PostImportsApply(w http.ResponseWriter, r *http.Request) {
	s.handleImport(w, r, model.ImportModeApply)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, mode string) {
	parsed, appErr := s.parseImportUpload(r)
	if appErr != nil {
		httpx.WriteError(w, r, appErr.Status, appErr.Code, appErr.Message, appErr.Details)
		return
	}

	mapping, err := decodeMapping(parsed.options.Mapping)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_mapping", err.Error(), nil)
		return
	}

	requestID := middleware.RequestIDFromContext(r.Context())
	_ = s.Audit.Log(r.Context(), audit.Entry{
		Action:     "import." + mode + "_started",
		EntityType: "import_run",
		RequestID:  requestID,
		Metadata: map[string]any{
			"source":     parsed.options.Source,
			"filename":   parsed.filename,
			"fileSha256": parsed.fileSHA256,
			"rowsTotal":  len(parsed.table.Rows),
		},
	})

	result, err := s.Runner.Run(r.Context(), importer.RunParams{
		Source:     parsed.options.Source,
		Filename:   parsed.filename,
		FileSHA256: parsed.fileSHA256,
		Mode:       mode,
		Table:      parsed.table,
		Mapping:    mapping,
	})
	if err != nil {
		var missingErr *importer.MissingMappingError
		if errors.As(err, &missingErr) {
			httpx.WriteError(w, r, http.StatusBadRequest, "missing_mapping", missingErr.Error(),
				map[string]any{"missingFields": missingErr.Fields})
			return
		}
		var persistErr *importer.PersistError
		if errors.As(err, &persistErr) {
			details := map[string]any{}
			if result != nil {
				details["importRunId"] = result.Run.ID
			}
			httpx.WriteError(w, r, http.StatusBadGateway, "persistence_failed", persistErr.Error(), details)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Import failed", nil)
		return
	}

	_ = s.Audit.Log(r.Context(), audit.Entry{
		Action:     "import." + mode + "_completed",
		EntityType: "import_run",
		EntityID:   result.Run.ID.String(),
		RequestID:  requestID,
		Metadata: map[string]any{
			"source":   parsed.options.Source,
			"filename": parsed.filename,
			"status":   result.Run.Status,
			"summary":  result.Run.Summary,
		},
	})

	httpx.WriteJSON(w, http.StatusOK, mapImportRun(result.Run, result.ErrorRows, requestID))
}

func (s *Server) GetImportsImportRunID(w http.ResponseWriter, r *http.Request, importRunID uuid.UUID) {
	run, err := s.Store.GetImportRun(r.Context(), importRunID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "import_run_not_found", "Import run not found", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load import run", nil)
		return
	}

	errorRows, err := s.Store.ListRowErrors(r.Context(), run.ID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load import errors", nil)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, mapImportRun(run, errorRows, middleware.RequestIDFromContext(r.Context())))
}

func (s *Server) GetImportsImportRunIDErrorsCsv(w http.ResponseWriter, r *http.Request, importRunID uuid.UUID) {
	run, err := s.Store.GetImportRun(r.Context(), importRunID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "import_run_not_found", "Import run not found", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load import run", nil)
		return
	}

	errorRows, err := s.Store.ListRowErrors(r.Context(), run.ID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load import errors", nil)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", importer.ErrorReportFilename))
	if err := importer.WriteErrorsCSV(w, run.Columns, errorRows); err != nil {
		s.Logger.Error("write errors csv", "error", err, "import_run_id", run.ID)
	}
}

func mapImportRun(run model.ImportRun, errorRows []model.RowError, requestID string) importRunResponse {
	topErrors := make([]importRowErrorPayload, 0, len(errorRows))
	for i, errorRow := range errorRows {
		if i == 100 {
			break
		}
		topErrors = append(topErrors, importRowErrorPayload{
			RowIndex: errorRow.RowIndex,
			Message:  errorRow.Message,
		})
	}

	return importRunResponse{
		ImportRunID: openapi_types.UUID(run.ID),
		Source:      run.Source,
		Filename:    run.Filename,
		Mode:        run.Mode,
		Status:      run.Status,
		Summary:     run.Summary,
		TopErrors:   topErrors,
		DownloadURLs: importDownloadURLs{
			ErrorsCsv: fmt.Sprintf("/api/imports/%s/errors.csv", run.ID),
		},
		CreatedAt:   run.CreatedAt.UTC(),
		CompletedAt: run.CompletedAt,
		RequestID:   requestID,
	}
}

type appError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (s *Server) parseImportUpload(r *http.Request) (parsedImportUpload, *appError) {
	table, filename, digest, appErr := s.readMultipartFile(r)
	if appErr != nil {
		return parsedImportUpload{}, appErr
	}

	optionsRaw := strings.TrimSpace(r.FormValue("options"))
	if optionsRaw == "" {
		return parsedImportUpload{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "missing_options",
			Message: "options is required",
		}
	}

	var options importOptionsPayload
	if err := json.Unmarshal([]byte(optionsRaw), &options); err != nil {
		return parsedImportUpload{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "invalid_options",
			Message: "options must be valid JSON",
		}
	}
	if options.Source != importer.SourceConexa && options.Source != importer.SourceGeneric {
		return parsedImportUpload{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "validation_error",
			Message: "options.source must be conexa or generic",
		}
	}
	if len(options.Mapping) == 0 {
		return parsedImportUpload{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "validation_error",
			Message: "options.mapping is required",
		}
	}

	return parsedImportUpload{
		filename:   filename,
		fileSHA256: digest,
		options:    options,
		table:      table,
	}, nil
}

func (s *Server) parseUploadedFile(r *http.Request) (*importer.Table, *appError) {
	table, _, _, appErr := s.readMultipartFile(r)
	return table, appErr
}

func (s *Server) readMultipartFile(r *http.Request) (*importer.Table, string, string, *appError) {
	if !strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data") {
		return nil, "", "", &appError{
			Status:  http.StatusBadRequest,
			Code:    "invalid_content_type",
			Message: "Content-Type must be multipart/form-data",
		}
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, "", "", &appError{
			Status:  http.StatusBadRequest,
			Code:    "invalid_multipart",
			Message: "Failed to parse multipart form",
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "", &appError{
			Status:  http.StatusBadRequest,
			Code:    "missing_file",
			Message: "file is required",
		}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", "", &appError{
			Status:  http.StatusBadRequest,
			Code:    "invalid_file",
			Message: "Failed to read uploaded file",
		}
	}
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	table, err := importer.ReadTable(bytes.NewReader(data), header.Filename)
	if err != nil {
		var parseErr *importer.ParseError
		if errors.As(err, &parseErr) {
			return nil, "", "", &appError{
				Status:  http.StatusBadRequest,
				Code:    "file_parse_error",
				Message: "The file could not be processed",
				Details: map[string]any{"filename": header.Filename},
			}
		}
		return nil, "", "", &appError{
			Status:  http.StatusInternalServerError,
			Code:    "internal_error",
			Message: "Failed to read file",
		}
	}

	if s.Config.ImportMaxRows > 0 && len(table.Rows) > s.Config.ImportMaxRows {
		return nil, "", "", &appError{
			Status:  http.StatusBadRequest,
			Code:    "row_limit_exceeded",
			Message: "Spreadsheet row limit exceeded",
			Details: map[string]any{"maxRows": s.Config.ImportMaxRows},
		}
	}

	return table, header.Filename, digest, nil
}

func decodeMapping(raw map[string]string) (importer.Mapping, error) {
	known := map[importer.Field]struct{}{}
	for _, field := range importer.Fields {
		known[field] = struct{}{}
	}

	mapping := make(importer.Mapping, len(raw))
	for key, column := range raw {
		field := importer.Field(key)
		if _, ok := known[field]; !ok {
			return nil, fmt.Errorf("unknown mapping field %q", key)
		}
		if strings.TrimSpace(column) == "" {
			continue
		}
		mapping[field] = column
	}
	return mapping, nil
}
