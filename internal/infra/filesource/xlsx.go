package filesource

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"srp-quiz-service/internal/domain"
)

// XLSX reads item rows from one sheet of a workbook.
type XLSX struct {
	path  string
	sheet string
}

func NewXLSX(path, sheet string) *XLSX {
	return &XLSX{path: path, sheet: sheet}
}

func (s *XLSX) LoadRows(_ context.Context) ([]domain.RawRow, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, wrapLoad(s.path, err)
	}
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, wrapLoad(s.path, fmt.Errorf("workbook has no sheets"))
		}
		sheet = sheets[0]
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, wrapLoad(s.path, err)
	}
	rows, err := rowsFromTable(records)
	if err != nil {
		return nil, wrapLoad(s.path, err)
	}
	return rows, nil
}
