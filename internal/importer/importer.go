// Package importer implements the spreadsheet-to-CRM pipeline: parse an
// uploaded workbook, map its columns onto domain fields, normalize each
// row into customers, services, contracts and room occupations, and hand
// the resulting snapshot to the store.
package importer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hubdesk-platform/api/internal/model"
	"github.com/hubdesk-platform/api/internal/store"
)

const (
	SourceConexa  = "conexa"
	SourceGeneric = "generic"
)

// Runner executes one import run end to end. Transform stays pure; all
// side effects go through the store.
type Runner struct {
	Store store.Store
}

type RunParams struct {
	Source     string
	Filename   string
	FileSHA256 string
	Mode       string
	Table      *Table
	Mapping    Mapping
}

type Result struct {
	Run       model.ImportRun
	Snapshot  model.Snapshot
	ErrorRows []model.RowError
}

// Run validates the mapping, transforms every row and, in apply mode,
// persists the snapshot. Mapping violations abort before any row is
// processed; persistence failures fail the recorded run as a whole.
func (r *Runner) Run(ctx context.Context, params RunParams) (*Result, error) {
	if missing := params.Mapping.MissingRequired(); len(missing) > 0 {
		return nil, &MissingMappingError{Fields: missing}
	}

	now := time.Now().UTC()
	run := model.ImportRun{
		ID:         uuid.New(),
		Source:     params.Source,
		Filename:   params.Filename,
		FileSHA256: params.FileSHA256,
		Mode:       params.Mode,
		Status:     model.ImportStatusFailed,
		Columns:    params.Table.Headers,
		CreatedAt:  now,
	}
	if err := r.Store.CreateImportRun(ctx, run); err != nil {
		return nil, &PersistError{Err: err}
	}

	snapshot, errorRows := Transform(params.Mapping, params.Table.Rows, now)
	summary := model.ImportRunSummary{
		RowsTotal:       len(params.Table.Rows),
		RowsImported:    len(params.Table.Rows) - len(errorRows),
		RowsError:       len(errorRows),
		Customers:       len(snapshot.Customers),
		Services:        len(snapshot.Services),
		Contracts:       len(snapshot.Contracts),
		RoomOccupations: len(snapshot.RoomOccupations),
	}

	if err := r.Store.InsertRowErrors(ctx, run.ID, errorRows); err != nil {
		return nil, &PersistError{Err: err}
	}

	if params.Mode == model.ImportModeApply {
		if err := r.Store.ApplySnapshot(ctx, snapshot); err != nil {
			failed, completeErr := r.Store.CompleteImportRun(ctx, run.ID, model.ImportStatusFailed, summary)
			if completeErr == nil {
				run = failed
			}
			return &Result{Run: run, Snapshot: snapshot, ErrorRows: errorRows}, &PersistError{Err: err}
		}
	}

	completed, err := r.Store.CompleteImportRun(ctx, run.ID, model.ImportStatusCompleted, summary)
	if err != nil {
		return nil, &PersistError{Err: err}
	}

	return &Result{Run: completed, Snapshot: snapshot, ErrorRows: errorRows}, nil
}
