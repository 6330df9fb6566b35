package importer

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/hubdesk-platform/api/internal/model"
)

// ErrorReportFilename is the download name the UI offers for the
// per-row failure report.
const ErrorReportFilename = "conexa_import_errors.csv"

// WriteErrorsCSV renders the failed rows as RFC-4180 CSV: a header of
// "Row Index", "Error" and the original spreadsheet columns, then one
// line per failed row with its original cell values. Empty input writes
// nothing so callers can suppress the download entirely.
func WriteErrorsCSV(w io.Writer, headers []string, errorRows []model.RowError) error {
	if len(errorRows) == 0 {
		return nil
	}

	writer := csv.NewWriter(w)
	header := append([]string{"Row Index", "Error"}, headers...)
	if err := writer.Write(header); err != nil {
		return err
	}

	line := make([]string, 0, len(header))
	for _, errorRow := range errorRows {
		line = line[:0]
		line = append(line, strconv.Itoa(errorRow.RowIndex), errorRow.Message)
		for _, column := range headers {
			line = append(line, errorRow.Row[column])
		}
		if err := writer.Write(line); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
