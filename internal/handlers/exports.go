package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/hubdesk-platform/api/internal/audit"
	"github.com/hubdesk-platform/api/internal/httpx"
	"github.com/hubdesk-platform/api/internal/middleware"
	"github.com/hubdesk-platform/api/internal/store"
)

func (s *Server) GetExportsCustomersCsv(w http.ResponseWriter, r *http.Request) {
	s.writeExportCSV(w, r, "customers", "customers.csv", func(writer *csv.Writer) error {
		customers, err := s.Store.ListCustomers(r.Context(), "", 0)
		if err != nil {
			return err
		}
		_ = writer.Write([]string{"id", "name", "doc_number", "email", "phone", "updated_at"})
		for _, customer := range customers {
			_ = writer.Write([]string{
				customer.ID,
				customer.Name,
				customer.DocNumber,
				customer.Email,
				customer.Phone,
				customer.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}
		return nil
	})
}

func (s *Server) GetExportsContractsCsv(w http.ResponseWriter, r *http.Request) {
	s.writeExportCSV(w, r, "contracts", "contracts.csv", func(writer *csv.Writer) error {
		contracts, err := s.Store.ListContracts(r.Context(), store.ContractFilter{Limit: 0})
		if err != nil {
			return err
		}
		_ = writer.Write([]string{"id", "customer_id", "service_id", "status", "amount", "start_date", "updated_at"})
		for _, contract := range contracts {
			_ = writer.Write([]string{
				contract.ID,
				contract.CustomerID,
				contract.ServiceID,
				contract.Status,
				contract.Amount.String(),
				contract.StartDate.UTC().Format("2006-01-02"),
				contract.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}
		return nil
	})
}

func (s *Server) writeExportCSV(w http.ResponseWriter, r *http.Request, entityType, filename string, writerFunc func(writer *csv.Writer) error) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	writer := csv.NewWriter(w)
	if err := writerFunc(writer); err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to generate export CSV", nil)
		return
	}
	writer.Flush()
	if writer.Error() != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to stream export CSV", nil)
		return
	}

	_ = s.Audit.Log(r.Context(), audit.Entry{
		Action:     "export.download",
		EntityType: entityType,
		RequestID:  middleware.RequestIDFromContext(r.Context()),
		Metadata: map[string]any{
			"filename": filename,
		},
	})
}
