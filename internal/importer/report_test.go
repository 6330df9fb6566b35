package importer

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubdesk-platform/api/internal/model"
)

func TestWriteErrorsCSV(t *testing.T) {
	headers := []string{"Nome", "CNPJ", "Plano"}
	errorRows := []model.RowError{
		{
			RowIndex: 3,
			Row:      model.RawRow{"Nome": "Acme, Ltda", "CNPJ": "", "Plano": "Flex"},
			Message:  `row 3: blank name or document number`,
		},
		{
			RowIndex: 7,
			Row:      model.RawRow{"Nome": "Linha \"quebrada\"", "CNPJ": "--", "Plano": ""},
			Message:  `row 7: document number "--" has no digits`,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteErrorsCSV(&buf, headers, errorRows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"Row Index", "Error", "Nome", "CNPJ", "Plano"}, records[0])
	assert.Equal(t, []string{"3", `row 3: blank name or document number`, "Acme, Ltda", "", "Flex"}, records[1])
	assert.Equal(t, []string{"7", `row 7: document number "--" has no digits`, `Linha "quebrada"`, "--", ""}, records[2])
}

func TestWriteErrorsCSVEmptyWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteErrorsCSV(&buf, []string{"Nome"}, nil))
	assert.Zero(t, buf.Len())
}
