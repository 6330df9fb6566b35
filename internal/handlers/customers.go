package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"

	"github.com/hubdesk-platform/api/internal/audit"
	"github.com/hubdesk-platform/api/internal/httpx"
	"github.com/hubdesk-platform/api/internal/importer"
	"github.com/hubdesk-platform/api/internal/middleware"
	"github.com/hubdesk-platform/api/internal/model"
	"github.com/hubdesk-platform/api/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type customerPayload struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	DocNumber string               `json:"docNumber"`
	Email     *openapi_types.Email `json:"email,omitempty"`
	Phone     *string              `json:"phone,omitempty"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

type createCustomerRequest struct {
	Name      string               `json:"name"`
	DocNumber string               `json:"docNumber"`
	Email     *openapi_types.Email `json:"email,omitempty"`
	Phone     *string              `json:"phone,omitempty"`
}

type servicePayload struct {
	ID        string          `json:"id"`
	Label     string          `json:"label"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type contractPayload struct {
	ID         string             `json:"id"`
	CustomerID string             `json:"customerId"`
	ServiceID  string             `json:"serviceId"`
	Status     string             `json:"status"`
	Amount     decimal.Decimal    `json:"amount"`
	StartDate  openapi_types.Date `json:"startDate"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

type roomOccupancyPayload struct {
	RoomID       string             `json:"roomId"`
	ContractID   string             `json:"contractId"`
	CustomerID   string             `json:"customerId"`
	CustomerName string             `json:"customerName"`
	ServiceLabel string             `json:"serviceLabel"`
	Date         openapi_types.Date `json:"date"`
}

func (s *Server) GetCustomers(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("q"))
	limit, appErr := parseLimit(r.URL.Query().Get("limit"))
	if appErr != nil {
		httpx.WriteError(w, r, appErr.Status, appErr.Code, appErr.Message, appErr.Details)
		return
	}

	customers, err := s.Store.ListCustomers(r.Context(), search, limit)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load customers", nil)
		return
	}

	items := make([]customerPayload, 0, len(customers))
	for _, customer := range customers {
		items = append(items, mapCustomerPayload(customer))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) GetCustomersCustomerID(w http.ResponseWriter, r *http.Request, customerID string) {
	customer, err := s.Store.GetCustomer(r.Context(), customerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "customer_not_found", "Customer was not found", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load customer", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapCustomerPayload(customer))
}

func (s *Server) PostCustomers(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Malformed JSON body", nil)
		return
	}

	name := strings.TrimSpace(req.Name)
	docNumber := strings.TrimSpace(req.DocNumber)
	if name == "" || docNumber == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "name and docNumber are required", nil)
		return
	}
	docKey := importer.DigitsOnly(docNumber)
	if docKey == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "docNumber must contain digits", nil)
		return
	}

	customer := model.Customer{
		ID:        "cust_" + docKey,
		Name:      name,
		DocNumber: docNumber,
		UpdatedAt: time.Now().UTC(),
	}
	if req.Email != nil {
		customer.Email = string(*req.Email)
	}
	if req.Phone != nil {
		customer.Phone = strings.TrimSpace(*req.Phone)
	}

	if _, err := s.Store.GetCustomer(r.Context(), customer.ID); err == nil {
		httpx.WriteError(w, r, http.StatusConflict, "customer_exists", "A customer with this document number already exists",
			map[string]any{"customerId": customer.ID})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to check customer", nil)
		return
	}

	if err := s.Store.CreateCustomer(r.Context(), customer); err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to create customer", nil)
		return
	}

	_ = s.Audit.Log(r.Context(), audit.Entry{
		Action:     "customers.create",
		EntityType: "customer",
		EntityID:   customer.ID,
		RequestID:  middleware.RequestIDFromContext(r.Context()),
	})

	httpx.WriteJSON(w, http.StatusCreated, mapCustomerPayload(customer))
}

func (s *Server) GetServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.Store.ListServices(r.Context())
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load services", nil)
		return
	}

	items := make([]servicePayload, 0, len(services))
	for _, service := range services {
		items = append(items, servicePayload{
			ID:        service.ID,
			Label:     service.Label,
			Category:  service.Category,
			Price:     service.Price,
			UpdatedAt: service.UpdatedAt.UTC(),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) GetContracts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	status := strings.TrimSpace(query.Get("status"))
	if status != "" && status != model.ContractStatusActive && status != model.ContractStatusClosed {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "status must be active or closed", nil)
		return
	}
	limit, appErr := parseLimit(query.Get("limit"))
	if appErr != nil {
		httpx.WriteError(w, r, appErr.Status, appErr.Code, appErr.Message, appErr.Details)
		return
	}

	contracts, err := s.Store.ListContracts(r.Context(), store.ContractFilter{
		CustomerID: strings.TrimSpace(query.Get("customerId")),
		Status:     status,
		Limit:      limit,
	})
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load contracts", nil)
		return
	}

	items := make([]contractPayload, 0, len(contracts))
	for _, contract := range contracts {
		items = append(items, contractPayload{
			ID:         contract.ID,
			CustomerID: contract.CustomerID,
			ServiceID:  contract.ServiceID,
			Status:     contract.Status,
			Amount:     contract.Amount,
			StartDate:  openapi_types.Date{Time: contract.StartDate},
			UpdatedAt:  contract.UpdatedAt.UTC(),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) GetRoomsOccupancy(w http.ResponseWriter, r *http.Request) {
	date := time.Now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "date must be YYYY-MM-DD", nil)
			return
		}
		date = parsed
	}

	occupancy, err := s.Store.ListRoomOccupancy(r.Context(), date)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load room occupancy", nil)
		return
	}

	items := make([]roomOccupancyPayload, 0, len(occupancy))
	for _, entry := range occupancy {
		items = append(items, roomOccupancyPayload{
			RoomID:       entry.RoomID,
			ContractID:   entry.ContractID,
			CustomerID:   entry.CustomerID,
			CustomerName: entry.CustomerName,
			ServiceLabel: entry.ServiceLabel,
			Date:         openapi_types.Date{Time: entry.Date},
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items, "occupiedRooms": len(items)})
}

func mapCustomerPayload(customer model.Customer) customerPayload {
	payload := customerPayload{
		ID:        customer.ID,
		Name:      customer.Name,
		DocNumber: customer.DocNumber,
		UpdatedAt: customer.UpdatedAt.UTC(),
	}
	if customer.Email != "" {
		email := openapi_types.Email(customer.Email)
		payload.Email = &email
	}
	if customer.Phone != "" {
		phone := customer.Phone
		payload.Phone = &phone
	}
	return payload
}

func parseLimit(raw string) (int, *appError) {
	if strings.TrimSpace(raw) == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, &appError{
			Status:  http.StatusBadRequest,
			Code:    "validation_error",
			Message: "limit must be a positive integer",
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

