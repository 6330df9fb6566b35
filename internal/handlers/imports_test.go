package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/hubdesk-platform/api/internal/audit"
	"github.com/hubdesk-platform/api/internal/config"
	"github.com/hubdesk-platform/api/internal/model"
	"github.com/hubdesk-platform/api/internal/store"
)

const sampleCSV = "Nome,CNPJ,Plano,Sala,Status\n" +
	"Acme Ltda,12.345.678/0001-99,Sala Privativa,204,Ativo\n" +
	"Beta ME,98765432000110,Flex,,Inativo\n" +
	",1,Flex,,\n"

const sampleOptions = `{"source":"conexa","mapping":{"name":"Nome","docNumber":"CNPJ","serviceType":"Plano","roomNumber":"Sala","status":"Status"}}`

func newTestServer(cfg config.Config) (*Server, *store.Memory) {
	memory := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(cfg, memory, audit.NewLogger(memory), logger), memory
}

func importRequest(t *testing.T, target, filename, content, options string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if options != "" {
		if err := writer.WriteField("options", options); err != nil {
			t.Fatalf("write options field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type importRunEnvelope struct {
	ImportRunID string                 `json:"importRunId"`
	Source      string                 `json:"source"`
	Mode        string                 `json:"mode"`
	Status      string                 `json:"status"`
	Summary     model.ImportRunSummary `json:"summary"`
	TopErrors   []struct {
		RowIndex int    `json:"rowIndex"`
		Message  string `json:"message"`
	} `json:"topErrors"`
	DownloadURLs struct {
		ErrorsCsv string `json:"errorsCsv"`
	} `json:"downloadUrls"`
}

func TestPostImportsPreviewDetectsMapping(t *testing.T) {
	server, _ := newTestServer(config.Config{})

	rr := httptest.NewRecorder()
	server.PostImportsPreview(rr, importRequest(t, "/api/imports/preview", "conexa.csv", sampleCSV, ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Headers       []string          `json:"headers"`
		SampleRows    []model.RawRow    `json:"sampleRows"`
		Mapping       map[string]string `json:"mapping"`
		MissingFields []string          `json:"missingFields"`
		RowsTotal     int               `json:"rowsTotal"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RowsTotal != 3 {
		t.Fatalf("expected rowsTotal 3, got %d", resp.RowsTotal)
	}
	if resp.Mapping["name"] != "Nome" || resp.Mapping["docNumber"] != "CNPJ" || resp.Mapping["serviceType"] != "Plano" {
		t.Fatalf("unexpected detected mapping: %v", resp.Mapping)
	}
	if len(resp.MissingFields) != 0 {
		t.Fatalf("expected no missing required fields, got %v", resp.MissingFields)
	}
	if len(resp.SampleRows) != 3 {
		t.Fatalf("expected 3 sample rows, got %d", len(resp.SampleRows))
	}
}

func TestPostImportsDryRunLeavesStoreUntouched(t *testing.T) {
	server, memory := newTestServer(config.Config{})

	rr := httptest.NewRecorder()
	server.PostImportsDryRun(rr, importRequest(t, "/api/imports/dry-run", "conexa.csv", sampleCSV, sampleOptions))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp importRunEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != model.ImportStatusCompleted {
		t.Fatalf("expected status completed, got %s", resp.Status)
	}
	if resp.Summary.RowsTotal != 3 || resp.Summary.RowsImported != 2 || resp.Summary.RowsError != 1 {
		t.Fatalf("unexpected summary: %+v", resp.Summary)
	}

	customers, err := memory.ListCustomers(req(t).Context(), "", 0)
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}
	if len(customers) != 0 {
		t.Fatalf("dry run must not persist customers, found %d", len(customers))
	}
}

func TestPostImportsApplyPersistsSnapshot(t *testing.T) {
	server, memory := newTestServer(config.Config{})

	rr := httptest.NewRecorder()
	server.PostImportsApply(rr, importRequest(t, "/api/imports/apply", "conexa.csv", sampleCSV, sampleOptions))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp importRunEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	customers, err := memory.ListCustomers(req(t).Context(), "", 0)
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}
	if len(customers) != 2 {
		t.Fatalf("expected 2 persisted customers, got %d", len(customers))
	}

	closed, err := memory.ListContracts(req(t).Context(), store.ContractFilter{Status: model.ContractStatusClosed})
	if err != nil {
		t.Fatalf("list contracts: %v", err)
	}
	if len(closed) != 1 {
		t.Fatalf("expected 1 closed contract, got %d", len(closed))
	}

	runID, err := uuid.Parse(resp.ImportRunID)
	if err != nil {
		t.Fatalf("parse import run id %q: %v", resp.ImportRunID, err)
	}
	getRR := httptest.NewRecorder()
	server.GetImportsImportRunID(getRR, req(t), runID)
	if getRR.Code != http.StatusOK {
		t.Fatalf("expected status 200 for stored run, got %d", getRR.Code)
	}
}

func TestPostImportsApplyErrorsCSVDownload(t *testing.T) {
	server, _ := newTestServer(config.Config{})

	rr := httptest.NewRecorder()
	server.PostImportsApply(rr, importRequest(t, "/api/imports/apply", "conexa.csv", sampleCSV, sampleOptions))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp importRunEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	runID := uuid.MustParse(resp.ImportRunID)

	csvRR := httptest.NewRecorder()
	server.GetImportsImportRunIDErrorsCsv(csvRR, req(t), runID)
	if csvRR.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", csvRR.Code)
	}
	if got := csvRR.Header().Get("Content-Type"); got != "text/csv" {
		t.Fatalf("expected text/csv, got %q", got)
	}
	if got := csvRR.Header().Get("Content-Disposition"); !strings.Contains(got, "conexa_import_errors.csv") {
		t.Fatalf("expected attachment filename in Content-Disposition, got %q", got)
	}
	body := csvRR.Body.String()
	if !strings.HasPrefix(body, "Row Index,Error,Nome,CNPJ,Plano,Sala,Status") {
		t.Fatalf("unexpected csv header: %q", body)
	}
	if !strings.Contains(body, "blank name or document number") {
		t.Fatalf("expected row error message in csv, got %q", body)
	}
}

func TestPostImportsMissingMappingRejected(t *testing.T) {
	server, memory := newTestServer(config.Config{})
	options := `{"source":"conexa","mapping":{"name":"Nome"}}`

	rr := httptest.NewRecorder()
	server.PostImportsDryRun(rr, importRequest(t, "/api/imports/dry-run", "conexa.csv", sampleCSV, options))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "missing_mapping" {
		t.Fatalf("expected code missing_mapping, got %q", envelope.Error.Code)
	}
	if _, ok := envelope.Error.Details["missingFields"]; !ok {
		t.Fatalf("expected missingFields in details, got %v", envelope.Error.Details)
	}
	customers, _ := memory.ListCustomers(req(t).Context(), "", 0)
	if len(customers) != 0 {
		t.Fatalf("no row may be processed when the mapping is rejected")
	}
}

func TestPostImportsRejectsUnknownSource(t *testing.T) {
	server, _ := newTestServer(config.Config{})
	options := `{"source":"quickbooks","mapping":{"name":"Nome","docNumber":"CNPJ","serviceType":"Plano"}}`

	rr := httptest.NewRecorder()
	server.PostImportsDryRun(rr, importRequest(t, "/api/imports/dry-run", "conexa.csv", sampleCSV, options))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "conexa or generic") {
		t.Fatalf("expected source validation message, got %s", rr.Body.String())
	}
}

func TestPostImportsRejectsUnknownMappingField(t *testing.T) {
	server, _ := newTestServer(config.Config{})
	options := `{"source":"generic","mapping":{"name":"Nome","docNumber":"CNPJ","serviceType":"Plano","favoriteColor":"Cor"}}`

	rr := httptest.NewRecorder()
	server.PostImportsDryRun(rr, importRequest(t, "/api/imports/dry-run", "conexa.csv", sampleCSV, options))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "invalid_mapping" {
		t.Fatalf("expected code invalid_mapping, got %q", envelope.Error.Code)
	}
}

func TestPostImportsRowLimitExceeded(t *testing.T) {
	server, _ := newTestServer(config.Config{ImportMaxRows: 1})

	rr := httptest.NewRecorder()
	server.PostImportsDryRun(rr, importRequest(t, "/api/imports/dry-run", "conexa.csv", sampleCSV, sampleOptions))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "row_limit_exceeded" {
		t.Fatalf("expected code row_limit_exceeded, got %q", envelope.Error.Code)
	}
}

func TestPostImportsUnparsableFile(t *testing.T) {
	server, _ := newTestServer(config.Config{})

	rr := httptest.NewRecorder()
	server.PostImportsDryRun(rr, importRequest(t, "/api/imports/dry-run", "broken.xlsx", "not a workbook", sampleOptions))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "file_parse_error" {
		t.Fatalf("expected code file_parse_error, got %q", envelope.Error.Code)
	}
}

func TestGetImportRunNotFound(t *testing.T) {
	server, _ := newTestServer(config.Config{})

	rr := httptest.NewRecorder()
	server.GetImportsImportRunID(rr, req(t), uuid.New())

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func req(t *testing.T) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodGet, "/api/imports", nil)
}
