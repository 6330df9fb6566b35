package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadTableCSV(t *testing.T) {
	csvData := "Nome,CNPJ,Plano\nAcme Ltda,12.345.678/0001-99,Sala Privativa\nShort Row,42\n"

	table, err := ReadTable(strings.NewReader(csvData), "export.csv")

	require.NoError(t, err)
	assert.Equal(t, []string{"Nome", "CNPJ", "Plano"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Acme Ltda", table.Rows[0]["Nome"])
	assert.Equal(t, "12.345.678/0001-99", table.Rows[0]["CNPJ"])
	// Short rows are padded so every header has a cell.
	assert.Equal(t, "", table.Rows[1]["Plano"])
}

func TestReadTableCSVWindows1252Fallback(t *testing.T) {
	// "Razão Social" with 0xE3 for ã, as legacy exports encode it.
	csvData := []byte("Raz\xe3o Social,CNPJ\nS\xe3o Paulo Coworking,1\n")

	table, err := ReadTable(bytes.NewReader(csvData), "legacy.csv")

	require.NoError(t, err)
	assert.Equal(t, []string{"Razão Social", "CNPJ"}, table.Headers)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "São Paulo Coworking", table.Rows[0]["Razão Social"])
}

func TestReadTableCSVStripsBOM(t *testing.T) {
	csvData := "\uFEFFNome,CNPJ\nAcme,1\n"

	table, err := ReadTable(strings.NewReader(csvData), "bom.csv")

	require.NoError(t, err)
	assert.Equal(t, "Nome", table.Headers[0])
}

func TestReadTableXLSX(t *testing.T) {
	workbook := excelize.NewFile()
	sheet := workbook.GetSheetName(0)
	require.NoError(t, workbook.SetSheetRow(sheet, "A1", &[]any{"Nome", "CNPJ", "Plano"}))
	require.NoError(t, workbook.SetSheetRow(sheet, "A2", &[]any{"Acme Ltda", "12345678000199", "Flex"}))
	buf, err := workbook.WriteToBuffer()
	require.NoError(t, err)

	table, err := ReadTable(buf, "upload.xlsx")

	require.NoError(t, err)
	assert.Equal(t, []string{"Nome", "CNPJ", "Plano"}, table.Headers)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Acme Ltda", table.Rows[0]["Nome"])
	assert.Equal(t, "Flex", table.Rows[0]["Plano"])
}

func TestReadTableUnsupportedExtension(t *testing.T) {
	_, err := ReadTable(strings.NewReader("whatever"), "notes.txt")

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "notes.txt", parseErr.Filename)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestReadTableEmptyFile(t *testing.T) {
	_, err := ReadTable(strings.NewReader(""), "empty.csv")

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestReadTableCorruptXLS(t *testing.T) {
	// Legacy .xls is an OLE2 container; plain bytes must fail cleanly.
	_, err := ReadTable(strings.NewReader("not a compound document"), "legacy.xls")

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "legacy.xls", parseErr.Filename)
}

func TestReadTableCorruptXLSX(t *testing.T) {
	_, err := ReadTable(strings.NewReader("this is not a zip archive"), "broken.xlsx")

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}
