// Package store is the persistence boundary of the API. Handlers and the
// import pipeline talk to the Store interface only; Postgres backs it in
// production and Memory backs it in tests and the offline dev path.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hubdesk-platform/api/internal/model"
)

// ErrNotFound is returned when a looked-up entity does not exist.
var ErrNotFound = errors.New("not found")

// ContractFilter narrows ListContracts.
type ContractFilter struct {
	CustomerID string
	Status     string
	Limit      int
}

// RoomOccupancy is one room's state on a given date.
type RoomOccupancy struct {
	RoomID       string
	ContractID   string
	CustomerID   string
	CustomerName string
	ServiceLabel string
	Date         time.Time
}

type Store interface {
	// ApplySnapshot upserts every entity of one import run. The whole
	// snapshot is written atomically: either all collections land or
	// none do.
	ApplySnapshot(ctx context.Context, snapshot model.Snapshot) error

	CreateImportRun(ctx context.Context, run model.ImportRun) error
	CompleteImportRun(ctx context.Context, id uuid.UUID, status string, summary model.ImportRunSummary) (model.ImportRun, error)
	GetImportRun(ctx context.Context, id uuid.UUID) (model.ImportRun, error)
	InsertRowErrors(ctx context.Context, runID uuid.UUID, errorRows []model.RowError) error
	ListRowErrors(ctx context.Context, runID uuid.UUID) ([]model.RowError, error)

	ListCustomers(ctx context.Context, search string, limit int) ([]model.Customer, error)
	GetCustomer(ctx context.Context, id string) (model.Customer, error)
	CreateCustomer(ctx context.Context, customer model.Customer) error
	ListServices(ctx context.Context) ([]model.Service, error)
	ListContracts(ctx context.Context, filter ContractFilter) ([]model.Contract, error)
	ListRoomOccupancy(ctx context.Context, date time.Time) ([]RoomOccupancy, error)

	InsertAuditLog(ctx context.Context, entry model.AuditEntry) error

	Ping(ctx context.Context) error
}
