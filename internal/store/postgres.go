package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hubdesk-platform/api/internal/model"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Connect opens a pgx pool and verifies the connection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) ApplySnapshot(ctx context.Context, snapshot model.Snapshot) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, customer := range snapshot.Customers {
		if _, err := tx.Exec(ctx, `
			INSERT INTO customers (id, name, doc_number, email, phone, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				doc_number = EXCLUDED.doc_number,
				email = EXCLUDED.email,
				phone = EXCLUDED.phone,
				updated_at = EXCLUDED.updated_at
		`, customer.ID, customer.Name, customer.DocNumber, nullIfEmpty(customer.Email), nullIfEmpty(customer.Phone), customer.UpdatedAt); err != nil {
			return fmt.Errorf("upsert customer %s: %w", customer.ID, err)
		}
	}

	for _, service := range snapshot.Services {
		if _, err := tx.Exec(ctx, `
			INSERT INTO services (id, label, category, price, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				label = EXCLUDED.label,
				category = EXCLUDED.category,
				updated_at = EXCLUDED.updated_at
		`, service.ID, service.Label, service.Category, service.Price, service.UpdatedAt); err != nil {
			return fmt.Errorf("upsert service %s: %w", service.ID, err)
		}
	}

	for _, contract := range snapshot.Contracts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO contracts (id, customer_id, service_id, status, amount, start_date, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				amount = EXCLUDED.amount,
				start_date = EXCLUDED.start_date,
				updated_at = EXCLUDED.updated_at
		`, contract.ID, contract.CustomerID, contract.ServiceID, contract.Status, contract.Amount, contract.StartDate, contract.UpdatedAt); err != nil {
			return fmt.Errorf("upsert contract %s: %w", contract.ID, err)
		}
	}

	for _, occupation := range snapshot.RoomOccupations {
		if _, err := tx.Exec(ctx, `
			INSERT INTO room_occupations (room_id, contract_id, occupied_on)
			VALUES ($1, $2, $3)
			ON CONFLICT (room_id, contract_id, occupied_on) DO NOTHING
		`, occupation.RoomID, occupation.ContractID, occupation.Date); err != nil {
			return fmt.Errorf("upsert room occupation %s: %w", occupation.RoomID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func (p *Postgres) CreateImportRun(ctx context.Context, run model.ImportRun) error {
	columnsJSON, err := json.Marshal(run.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO import_runs (id, source, filename, file_sha256, mode, status, columns_json, summary_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, run.ID, run.Source, run.Filename, run.FileSHA256, run.Mode, run.Status, columnsJSON, summaryJSON, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

func (p *Postgres) CompleteImportRun(ctx context.Context, id uuid.UUID, status string, summary model.ImportRunSummary) (model.ImportRun, error) {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return model.ImportRun{}, fmt.Errorf("marshal summary: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		UPDATE import_runs
		SET status = $1, summary_json = $2, completed_at = now()
		WHERE id = $3
	`, status, summaryJSON, id)
	if err != nil {
		return model.ImportRun{}, fmt.Errorf("complete import run: %w", err)
	}
	return p.GetImportRun(ctx, id)
}

func (p *Postgres) GetImportRun(ctx context.Context, id uuid.UUID) (model.ImportRun, error) {
	var run model.ImportRun
	var columnsJSON, summaryJSON []byte
	err := p.pool.QueryRow(ctx, `
		SELECT id, source, filename, file_sha256, mode, status, columns_json, summary_json, created_at, completed_at
		FROM import_runs
		WHERE id = $1
	`, id).Scan(&run.ID, &run.Source, &run.Filename, &run.FileSHA256, &run.Mode, &run.Status, &columnsJSON, &summaryJSON, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ImportRun{}, ErrNotFound
		}
		return model.ImportRun{}, fmt.Errorf("get import run: %w", err)
	}
	if err := json.Unmarshal(columnsJSON, &run.Columns); err != nil {
		return model.ImportRun{}, fmt.Errorf("unmarshal columns: %w", err)
	}
	if err := json.Unmarshal(summaryJSON, &run.Summary); err != nil {
		return model.ImportRun{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	return run, nil
}

func (p *Postgres) InsertRowErrors(ctx context.Context, runID uuid.UUID, errorRows []model.RowError) error {
	for _, errorRow := range errorRows {
		rowJSON, err := json.Marshal(errorRow.Row)
		if err != nil {
			return fmt.Errorf("marshal row %d: %w", errorRow.RowIndex, err)
		}
		if _, err := p.pool.Exec(ctx, `
			INSERT INTO import_row_errors (import_run_id, row_index, row_json, message)
			VALUES ($1, $2, $3, $4)
		`, runID, errorRow.RowIndex, rowJSON, errorRow.Message); err != nil {
			return fmt.Errorf("insert row error %d: %w", errorRow.RowIndex, err)
		}
	}
	return nil
}

func (p *Postgres) ListRowErrors(ctx context.Context, runID uuid.UUID) ([]model.RowError, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT row_index, row_json, message
		FROM import_row_errors
		WHERE import_run_id = $1
		ORDER BY row_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list row errors: %w", err)
	}
	defer rows.Close()

	var errorRows []model.RowError
	for rows.Next() {
		var errorRow model.RowError
		var rowJSON []byte
		if err := rows.Scan(&errorRow.RowIndex, &rowJSON, &errorRow.Message); err != nil {
			return nil, fmt.Errorf("scan row error: %w", err)
		}
		if err := json.Unmarshal(rowJSON, &errorRow.Row); err != nil {
			return nil, fmt.Errorf("unmarshal row %d: %w", errorRow.RowIndex, err)
		}
		errorRows = append(errorRows, errorRow)
	}
	return errorRows, rows.Err()
}

func (p *Postgres) ListCustomers(ctx context.Context, search string, limit int) ([]model.Customer, error) {
	if limit <= 0 {
		limit = 100000
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, doc_number, COALESCE(email, ''), COALESCE(phone, ''), updated_at
		FROM customers
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%' OR doc_number LIKE '%' || $1 || '%'
		ORDER BY name, id
		LIMIT $2
	`, search, limit)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		var customer model.Customer
		if err := rows.Scan(&customer.ID, &customer.Name, &customer.DocNumber, &customer.Email, &customer.Phone, &customer.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, customer)
	}
	return customers, rows.Err()
}

func (p *Postgres) GetCustomer(ctx context.Context, id string) (model.Customer, error) {
	var customer model.Customer
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, doc_number, COALESCE(email, ''), COALESCE(phone, ''), updated_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name, &customer.DocNumber, &customer.Email, &customer.Phone, &customer.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Customer{}, ErrNotFound
		}
		return model.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return customer, nil
}

func (p *Postgres) CreateCustomer(ctx context.Context, customer model.Customer) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO customers (id, name, doc_number, email, phone, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, customer.ID, customer.Name, customer.DocNumber, nullIfEmpty(customer.Email), nullIfEmpty(customer.Phone), customer.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (p *Postgres) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, label, category, price, updated_at
		FROM services
		ORDER BY label
	`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var service model.Service
		if err := rows.Scan(&service.ID, &service.Label, &service.Category, &service.Price, &service.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, service)
	}
	return services, rows.Err()
}

func (p *Postgres) ListContracts(ctx context.Context, filter ContractFilter) ([]model.Contract, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100000
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, customer_id, service_id, status, amount, start_date, updated_at
		FROM contracts
		WHERE ($1 = '' OR customer_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY start_date DESC, id
		LIMIT $3
	`, filter.CustomerID, filter.Status, limit)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var contracts []model.Contract
	for rows.Next() {
		var contract model.Contract
		if err := rows.Scan(&contract.ID, &contract.CustomerID, &contract.ServiceID, &contract.Status, &contract.Amount, &contract.StartDate, &contract.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts = append(contracts, contract)
	}
	return contracts, rows.Err()
}

func (p *Postgres) ListRoomOccupancy(ctx context.Context, date time.Time) ([]RoomOccupancy, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT o.room_id, o.contract_id, c.customer_id, cu.name, s.label, o.occupied_on
		FROM room_occupations o
		JOIN contracts c ON c.id = o.contract_id
		JOIN customers cu ON cu.id = c.customer_id
		JOIN services s ON s.id = c.service_id
		WHERE o.occupied_on = $1
		ORDER BY o.room_id
	`, date)
	if err != nil {
		return nil, fmt.Errorf("list room occupancy: %w", err)
	}
	defer rows.Close()

	var occupancy []RoomOccupancy
	for rows.Next() {
		var entry RoomOccupancy
		if err := rows.Scan(&entry.RoomID, &entry.ContractID, &entry.CustomerID, &entry.CustomerName, &entry.ServiceLabel, &entry.Date); err != nil {
			return nil, fmt.Errorf("scan room occupancy: %w", err)
		}
		occupancy = append(occupancy, entry)
	}
	return occupancy, rows.Err()
}

func (p *Postgres) InsertAuditLog(ctx context.Context, entry model.AuditEntry) error {
	metadata := []byte("{}")
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = encoded
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO audit_log (user_id, action, entity_type, entity_id, request_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.UserID, entry.Action, entry.EntityType, entry.EntityID, nullIfEmpty(entry.RequestID), metadata)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func nullIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
