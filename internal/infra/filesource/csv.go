package filesource

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"srp-quiz-service/internal/domain"
)

// CSV reads item rows from a comma-separated file with a header row.
type CSV struct {
	path string
}

func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

func (s *CSV) LoadRows(_ context.Context) ([]domain.RawRow, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, wrapLoad(s.path, err)
	}
	defer f.Close()

	rows, err := ParseCSV(f)
	if err != nil {
		return nil, wrapLoad(s.path, err)
	}
	return rows, nil
}

// ParseCSV reads quoted, multi-line CSV content into raw rows.
func ParseCSV(r io.Reader) ([]domain.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return rowsFromTable(records)
}
