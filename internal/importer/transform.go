package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hubdesk-platform/api/internal/model"
)

// Transform walks rows strictly in input order and builds the snapshot.
// Row index feeds contract identity and error reporting, so the ordering
// is part of the contract. Rows that fail validation are diverted to the
// returned error list; a bad row never aborts the batch. Every row ends
// up in exactly one of the snapshot or the error list.
func Transform(mapping Mapping, rows []model.RawRow, now time.Time) (model.Snapshot, []model.RowError) {
	b := &snapshotBuilder{
		now:          now,
		customerByID: map[string]struct{}{},
		serviceByID:  map[string]struct{}{},
	}
	var errorRows []model.RowError

	for idx, row := range rows {
		if err := b.addRow(mapping, row, idx); err != nil {
			errorRows = append(errorRows, model.RowError{
				RowIndex: idx,
				Row:      row,
				Message:  err.Error(),
			})
		}
	}

	return model.Snapshot{
		Customers:       b.customers,
		Services:        b.services,
		Contracts:       b.contracts,
		RoomOccupations: b.occupations,
		SyncedAt:        now,
	}, errorRows
}

type snapshotBuilder struct {
	now          time.Time
	customers    []model.Customer
	services     []model.Service
	contracts    []model.Contract
	occupations  []model.RoomOccupation
	customerByID map[string]struct{}
	serviceByID  map[string]struct{}
}

// addRow applies one spreadsheet row to the in-progress snapshot. A
// panic anywhere in the row is converted into that row's error so the
// loop can continue with the next one.
func (b *snapshotBuilder) addRow(mapping Mapping, row model.RawRow, idx int) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("row %d: %v", idx, p)
		}
	}()

	name := cell(row, mapping, FieldName)
	docNumber := cell(row, mapping, FieldDocNumber)
	if name == "" || docNumber == "" {
		return fmt.Errorf("row %d: blank name or document number", idx)
	}

	docKey := DigitsOnly(docNumber)
	if docKey == "" {
		return fmt.Errorf("row %d: document number %q has no digits", idx, docNumber)
	}

	customerID := "cust_" + docKey
	if _, seen := b.customerByID[customerID]; !seen {
		b.customerByID[customerID] = struct{}{}
		b.customers = append(b.customers, model.Customer{
			ID:        customerID,
			Name:      name,
			DocNumber: docNumber,
			Email:     cell(row, mapping, FieldEmail),
			Phone:     cell(row, mapping, FieldPhone),
			UpdatedAt: b.now,
		})
	}
	// First row wins: a later duplicate never overwrites customer fields.

	serviceLabel := cell(row, mapping, FieldServiceType)
	if serviceLabel == "" {
		// Valid row without a plan contributes the customer only.
		return nil
	}

	serviceID := ServiceID(serviceLabel)
	if _, seen := b.serviceByID[serviceID]; !seen {
		b.serviceByID[serviceID] = struct{}{}
		b.services = append(b.services, model.Service{
			ID:        serviceID,
			Label:     serviceLabel,
			Category:  model.ServiceCategoryImported,
			Price:     decimal.Zero,
			UpdatedAt: b.now,
		})
	}

	status := model.ContractStatusActive
	if strings.EqualFold(cell(row, mapping, FieldStatus), "inativo") {
		status = model.ContractStatusClosed
	}

	// The row index keeps contract ids unique even when the same
	// customer/service pair repeats across rows.
	contract := model.Contract{
		ID:         fmt.Sprintf("ctr_%s_%s_%d", customerID, serviceID, idx),
		CustomerID: customerID,
		ServiceID:  serviceID,
		Status:     status,
		Amount:     decimal.Zero,
		StartDate:  b.now,
		UpdatedAt:  b.now,
	}
	b.contracts = append(b.contracts, contract)

	if room := cell(row, mapping, FieldRoomNumber); room != "" {
		b.occupations = append(b.occupations, model.RoomOccupation{
			RoomID:     room,
			ContractID: contract.ID,
			Date:       b.now,
		})
	}

	return nil
}

func cell(row model.RawRow, mapping Mapping, field Field) string {
	column := mapping[field]
	if column == "" {
		return ""
	}
	return strings.TrimSpace(row[column])
}

// DigitsOnly reduces a document number to its digits. This is the docKey
// rule: customer identity everywhere in the system derives from it.
func DigitsOnly(value string) string {
	digits := make([]rune, 0, len(value))
	for _, char := range value {
		if char >= '0' && char <= '9' {
			digits = append(digits, char)
		}
	}
	return string(digits)
}

// ServiceID normalizes a plan label into the service's stable id:
// lowercase with whitespace runs collapsed to single underscores,
// diacritics preserved ("Estação Flex" becomes "svc_estação_flex").
// Curated catalog rows must use the same rule or imports of the same
// plan create zero-price duplicates beside them.
func ServiceID(label string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(label)))
	return "svc_" + strings.Join(parts, "_")
}
