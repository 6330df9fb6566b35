package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ContractStatusActive = "active"
	ContractStatusClosed = "closed"

	ServiceCategoryImported = "imported"
)

// Customer is a company (or person) renting space. DocNumber keeps the
// formatting the spreadsheet carried; identity is derived from its digits.
type Customer struct {
	ID        string
	Name      string
	DocNumber string
	Email     string
	Phone     string
	UpdatedAt time.Time
}

// Service is a sellable plan such as a private room or a flex desk.
type Service struct {
	ID        string
	Label     string
	Category  string
	Price     decimal.Decimal
	UpdatedAt time.Time
}

// Contract links a customer to a service. Contracts are never merged
// across import rows: the same customer/service pair on two rows yields
// two contracts.
type Contract struct {
	ID         string
	CustomerID string
	ServiceID  string
	Status     string
	Amount     decimal.Decimal
	StartDate  time.Time
	UpdatedAt  time.Time
}

// RoomOccupation marks a room as taken by a contract on a given date.
type RoomOccupation struct {
	RoomID     string
	ContractID string
	Date       time.Time
}

// Snapshot is the complete set of normalized entities produced by one
// import run. It is built in memory and handed whole to the store.
type Snapshot struct {
	Customers       []Customer
	Services        []Service
	Contracts       []Contract
	RoomOccupations []RoomOccupation
	SyncedAt        time.Time
}

// RawRow is one spreadsheet line keyed by column header.
type RawRow map[string]string

// RowError captures a row that failed validation and was diverted from
// the snapshot.
type RowError struct {
	RowIndex int
	Row      RawRow
	Message  string
}

// ImportRunSummary is the per-run aggregate persisted alongside the run.
type ImportRunSummary struct {
	RowsTotal       int `json:"rowsTotal"`
	RowsImported    int `json:"rowsImported"`
	RowsError       int `json:"rowsError"`
	Customers       int `json:"customers"`
	Services        int `json:"services"`
	Contracts       int `json:"contracts"`
	RoomOccupations int `json:"roomOccupations"`
}

const (
	ImportModeDryRun = "dry_run"
	ImportModeApply  = "apply"

	ImportStatusCompleted = "completed"
	ImportStatusFailed    = "failed"
)

// ImportRun records one invocation of the import pipeline. Columns
// keeps the uploaded header row so the error report can replay the
// original layout.
type ImportRun struct {
	ID          uuid.UUID
	Source      string
	Filename    string
	FileSHA256  string
	Mode        string
	Status      string
	Columns     []string
	Summary     ImportRunSummary
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// AuditEntry is one line of the append-only audit trail.
type AuditEntry struct {
	ID         uuid.UUID
	UserID     *string
	Action     string
	EntityType string
	EntityID   *string
	RequestID  string
	Metadata   map[string]any
	CreatedAt  time.Time
}
