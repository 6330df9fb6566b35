package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/hubdesk-platform/api/internal/model"
)

// Table is a parsed spreadsheet: the header row plus every data row as a
// uniform string-keyed record. Short rows are padded with "" so every row
// carries every header.
type Table struct {
	Headers []string
	Rows    []model.RawRow
}

// ReadTable decodes an uploaded spreadsheet into a Table. The format is
// picked from the filename extension: .xlsx, .xls or .csv. Only the first
// worksheet of a workbook is read. A file that cannot be decoded yields a
// *ParseError and no partial result.
func ReadTable(r io.Reader, filename string) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Filename: filename, Err: err}
	}

	var grid [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		grid, err = readXLSX(data)
	case ".xls":
		grid, err = readXLS(data)
	case ".csv":
		grid, err = readCSV(data)
	default:
		err = fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}
	if err != nil {
		return nil, &ParseError{Filename: filename, Err: err}
	}
	if len(grid) == 0 {
		return nil, &ParseError{Filename: filename, Err: errors.New("file is empty")}
	}

	headers := make([]string, len(grid[0]))
	for i, header := range grid[0] {
		headers[i] = strings.TrimPrefix(strings.TrimSpace(header), "\uFEFF")
	}

	rows := make([]model.RawRow, 0, len(grid)-1)
	for _, line := range grid[1:] {
		row := make(model.RawRow, len(headers))
		for col, header := range headers {
			if col < len(line) {
				row[header] = strings.TrimSpace(line[col])
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}

	return &Table{Headers: headers, Rows: rows}, nil
}

func readXLSX(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer file.Close()

	sheetName := file.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := file.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}
	return rows, nil
}

func readXLS(data []byte) ([][]string, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if workbook.GetNumberSheets() == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet, err := workbook.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("read first sheet: %w", err)
	}

	grid := make([][]string, 0, int(sheet.GetNumberRows()))
	for i := 0; i <= int(sheet.GetNumberRows()); i++ {
		row, err := sheet.GetRow(i)
		if err != nil || row == nil {
			continue
		}
		var line []string
		for _, col := range row.GetCols() {
			if col != nil {
				line = append(line, col.GetString())
			} else {
				line = append(line, "")
			}
		}
		grid = append(grid, line)
	}
	return grid, nil
}

// readCSV parses comma-separated content. Conexa exports are sometimes
// Windows-1252 rather than UTF-8, so invalid UTF-8 payloads are decoded
// through charmap before parsing.
func readCSV(data []byte) ([][]string, error) {
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("decode windows-1252: %w", err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	grid := make([][]string, 0, 256)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		grid = append(grid, record)
	}
	return grid, nil
}
