package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hubdesk-platform/api/internal/model"
)

// Memory is an in-process Store used by tests and the seedless dev path.
// It mirrors the Postgres upsert semantics closely enough for the import
// pipeline and the read endpoints.
type Memory struct {
	mu          sync.RWMutex
	customers   map[string]model.Customer
	services    map[string]model.Service
	contracts   map[string]model.Contract
	occupations []model.RoomOccupation
	runs        map[uuid.UUID]model.ImportRun
	rowErrors   map[uuid.UUID][]model.RowError
	auditLog    []model.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{
		customers: map[string]model.Customer{},
		services:  map[string]model.Service{},
		contracts: map[string]model.Contract{},
		runs:      map[uuid.UUID]model.ImportRun{},
		rowErrors: map[uuid.UUID][]model.RowError{},
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) ApplySnapshot(_ context.Context, snapshot model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, customer := range snapshot.Customers {
		m.customers[customer.ID] = customer
	}
	for _, service := range snapshot.Services {
		if existing, ok := m.services[service.ID]; ok {
			// Imported services never clobber a curated price.
			service.Price = existing.Price
		}
		m.services[service.ID] = service
	}
	for _, contract := range snapshot.Contracts {
		m.contracts[contract.ID] = contract
	}
	for _, occupation := range snapshot.RoomOccupations {
		if !m.hasOccupation(occupation) {
			m.occupations = append(m.occupations, occupation)
		}
	}
	return nil
}

func (m *Memory) hasOccupation(occupation model.RoomOccupation) bool {
	for _, existing := range m.occupations {
		if existing.RoomID == occupation.RoomID &&
			existing.ContractID == occupation.ContractID &&
			sameDay(existing.Date, occupation.Date) {
			return true
		}
	}
	return false
}

func (m *Memory) CreateImportRun(_ context.Context, run model.ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) CompleteImportRun(_ context.Context, id uuid.UUID, status string, summary model.ImportRunSummary) (model.ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return model.ImportRun{}, ErrNotFound
	}
	now := time.Now().UTC()
	run.Status = status
	run.Summary = summary
	run.CompletedAt = &now
	m.runs[id] = run
	return run, nil
}

func (m *Memory) GetImportRun(_ context.Context, id uuid.UUID) (model.ImportRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return model.ImportRun{}, ErrNotFound
	}
	return run, nil
}

func (m *Memory) InsertRowErrors(_ context.Context, runID uuid.UUID, errorRows []model.RowError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rowErrors[runID] = append(m.rowErrors[runID], errorRows...)
	return nil
}

func (m *Memory) ListRowErrors(_ context.Context, runID uuid.UUID) ([]model.RowError, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	errorRows := append([]model.RowError(nil), m.rowErrors[runID]...)
	sort.Slice(errorRows, func(i, j int) bool { return errorRows[i].RowIndex < errorRows[j].RowIndex })
	return errorRows, nil
}

func (m *Memory) ListCustomers(_ context.Context, search string, limit int) ([]model.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(search))
	customers := make([]model.Customer, 0, len(m.customers))
	for _, customer := range m.customers {
		if needle != "" &&
			!strings.Contains(strings.ToLower(customer.Name), needle) &&
			!strings.Contains(customer.DocNumber, needle) {
			continue
		}
		customers = append(customers, customer)
	}
	sort.Slice(customers, func(i, j int) bool {
		if customers[i].Name == customers[j].Name {
			return customers[i].ID < customers[j].ID
		}
		return customers[i].Name < customers[j].Name
	})
	if limit > 0 && len(customers) > limit {
		customers = customers[:limit]
	}
	return customers, nil
}

func (m *Memory) GetCustomer(_ context.Context, id string) (model.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	customer, ok := m.customers[id]
	if !ok {
		return model.Customer{}, ErrNotFound
	}
	return customer, nil
}

func (m *Memory) CreateCustomer(_ context.Context, customer model.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[customer.ID] = customer
	return nil
}

func (m *Memory) ListServices(context.Context) ([]model.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	services := make([]model.Service, 0, len(m.services))
	for _, service := range m.services {
		services = append(services, service)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Label < services[j].Label })
	return services, nil
}

func (m *Memory) ListContracts(_ context.Context, filter ContractFilter) ([]model.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	contracts := make([]model.Contract, 0, len(m.contracts))
	for _, contract := range m.contracts {
		if filter.CustomerID != "" && contract.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && contract.Status != filter.Status {
			continue
		}
		contracts = append(contracts, contract)
	}
	sort.Slice(contracts, func(i, j int) bool {
		if contracts[i].StartDate.Equal(contracts[j].StartDate) {
			return contracts[i].ID < contracts[j].ID
		}
		return contracts[i].StartDate.After(contracts[j].StartDate)
	})
	if filter.Limit > 0 && len(contracts) > filter.Limit {
		contracts = contracts[:filter.Limit]
	}
	return contracts, nil
}

func (m *Memory) ListRoomOccupancy(_ context.Context, date time.Time) ([]RoomOccupancy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var occupancy []RoomOccupancy
	for _, occupation := range m.occupations {
		if !sameDay(occupation.Date, date) {
			continue
		}
		entry := RoomOccupancy{
			RoomID:     occupation.RoomID,
			ContractID: occupation.ContractID,
			Date:       occupation.Date,
		}
		if contract, ok := m.contracts[occupation.ContractID]; ok {
			entry.CustomerID = contract.CustomerID
			if customer, ok := m.customers[contract.CustomerID]; ok {
				entry.CustomerName = customer.Name
			}
			if service, ok := m.services[contract.ServiceID]; ok {
				entry.ServiceLabel = service.Label
			}
		}
		occupancy = append(occupancy, entry)
	}
	sort.Slice(occupancy, func(i, j int) bool { return occupancy[i].RoomID < occupancy[j].RoomID })
	return occupancy, nil
}

func (m *Memory) InsertAuditLog(_ context.Context, entry model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditLog = append(m.auditLog, entry)
	return nil
}

// AuditEntries returns a copy of the recorded audit trail, oldest first.
func (m *Memory) AuditEntries() []model.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.AuditEntry(nil), m.auditLog...)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
