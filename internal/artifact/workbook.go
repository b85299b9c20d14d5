package artifact

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ChuLiYu/rowplan/pkg/types"
)

// Sheet names of the timing workbook.
const (
	TimingSheet  = "timing"
	SummarySheet = "summary"
)

// XLSXName maps "timing-results.csv" to "timing-results.xlsx".
func XLSXName(csvName string) string {
	return strings.TrimSuffix(csvName, ".csv") + ".xlsx"
}

// TimingWorkbook converts the exported CSV table and the summary rows into
// an XLSX workbook. Numeric cells are stored as numbers.
func TimingWorkbook(csvContent []byte, summary []types.SummaryRow) ([]byte, error) {
	records, err := csv.NewReader(bytes.NewReader(csvContent)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse exported csv: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), TimingSheet); err != nil {
		return nil, fmt.Errorf("failed to name timing sheet: %w", err)
	}
	for r, rec := range records {
		for c, v := range rec {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(TimingSheet, cell, cellValue(v, r == 0)); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", cell, err)
			}
		}
	}

	if len(summary) > 0 {
		if _, err := f.NewSheet(SummarySheet); err != nil {
			return nil, fmt.Errorf("failed to add summary sheet: %w", err)
		}
		if err := f.SetSheetRow(SummarySheet, "A1", &[]any{"section", "name", "value"}); err != nil {
			return nil, err
		}
		for i, s := range summary {
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := f.SetSheetRow(SummarySheet, cell, &[]any{s.Section, s.Name, s.Value}); err != nil {
				return nil, fmt.Errorf("failed to write summary row %d: %w", i+1, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cellValue(v string, header bool) any {
	if header {
		return v
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}
