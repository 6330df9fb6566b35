package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubdesk-platform/api/internal/model"
	"github.com/hubdesk-platform/api/internal/store"
)

func testTable() *Table {
	return &Table{
		Headers: []string{"Nome", "CNPJ", "Plano", "Sala", "Status"},
		Rows: []model.RawRow{
			{"Nome": "Acme Ltda", "CNPJ": "12.345.678/0001-99", "Plano": "Sala Privativa", "Sala": "204"},
			{"Nome": "Beta ME", "CNPJ": "98765432000110", "Plano": "Flex", "Status": "Inativo"},
			{"Nome": "", "CNPJ": "1", "Plano": "Flex"},
		},
	}
}

func TestRunnerMissingMappingAbortsBeforeAnyRow(t *testing.T) {
	memory := store.NewMemory()
	runner := &Runner{Store: memory}

	_, err := runner.Run(context.Background(), RunParams{
		Source:  SourceConexa,
		Mode:    model.ImportModeDryRun,
		Table:   testTable(),
		Mapping: Mapping{FieldName: "Nome"},
	})

	var missingErr *MissingMappingError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []Field{FieldDocNumber, FieldServiceType}, missingErr.Fields)

	customers, listErr := memory.ListCustomers(context.Background(), "", 0)
	require.NoError(t, listErr)
	assert.Empty(t, customers, "nothing is persisted when the mapping is rejected")
}

func TestRunnerDryRunDoesNotPersistSnapshot(t *testing.T) {
	memory := store.NewMemory()
	runner := &Runner{Store: memory}
	table := testTable()

	result, err := runner.Run(context.Background(), RunParams{
		Source:   SourceConexa,
		Filename: "conexa.xlsx",
		Mode:     model.ImportModeDryRun,
		Table:    table,
		Mapping:  DetectMapping(table.Headers),
	})

	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusCompleted, result.Run.Status)
	assert.Equal(t, model.ImportRunSummary{
		RowsTotal:       3,
		RowsImported:    2,
		RowsError:       1,
		Customers:       2,
		Services:        2,
		Contracts:       2,
		RoomOccupations: 1,
	}, result.Run.Summary)
	require.NotNil(t, result.Run.CompletedAt)

	customers, listErr := memory.ListCustomers(context.Background(), "", 0)
	require.NoError(t, listErr)
	assert.Empty(t, customers)

	// The run and its row errors are still recorded for the report.
	errorRows, listErr := memory.ListRowErrors(context.Background(), result.Run.ID)
	require.NoError(t, listErr)
	require.Len(t, errorRows, 1)
	assert.Equal(t, 2, errorRows[0].RowIndex)
}

func TestRunnerApplyPersistsSnapshot(t *testing.T) {
	memory := store.NewMemory()
	runner := &Runner{Store: memory}
	table := testTable()

	result, err := runner.Run(context.Background(), RunParams{
		Source:   SourceConexa,
		Filename: "conexa.xlsx",
		Mode:     model.ImportModeApply,
		Table:    table,
		Mapping:  DetectMapping(table.Headers),
	})

	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusCompleted, result.Run.Status)

	customers, listErr := memory.ListCustomers(context.Background(), "", 0)
	require.NoError(t, listErr)
	require.Len(t, customers, 2)

	contracts, listErr := memory.ListContracts(context.Background(), store.ContractFilter{Status: model.ContractStatusClosed})
	require.NoError(t, listErr)
	require.Len(t, contracts, 1)
	assert.Equal(t, "cust_98765432000110", contracts[0].CustomerID)

	stored, getErr := memory.GetImportRun(context.Background(), result.Run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, table.Headers, stored.Columns)
}

type applyFailingStore struct {
	*store.Memory
}

func (s *applyFailingStore) ApplySnapshot(context.Context, model.Snapshot) error {
	return errors.New("connection reset")
}

func TestRunnerApplyFailureFailsTheRun(t *testing.T) {
	memory := store.NewMemory()
	runner := &Runner{Store: &applyFailingStore{Memory: memory}}
	table := testTable()

	result, err := runner.Run(context.Background(), RunParams{
		Source:  SourceGeneric,
		Mode:    model.ImportModeApply,
		Table:   table,
		Mapping: DetectMapping(table.Headers),
	})

	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)
	require.NotNil(t, result)
	assert.Equal(t, model.ImportStatusFailed, result.Run.Status)
}
