package filesource

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"srp-quiz-service/internal/domain"
	"srp-quiz-service/internal/itempool"
)

// ErrMissingIDColumn is returned for a sheet whose header has no id column.
var ErrMissingIDColumn = errors.New("item sheet has no id column")

var headerAliases = map[string]string{
	"id":                "id",
	"item_id":           "id",
	"topic":             "topic",
	"week":              "week",
	"image":             "image",
	"image_or_prompt":   "image",
	"prompt":            "image",
	"answers":           "answers",
	"answer":            "answers",
	"q_type":            "q_type",
	"qtype":             "q_type",
	"question_type":     "q_type",
	"unfilled_template": "unfilled_template",
	"template":          "unfilled_template",
}

// Open picks a source for path by extension: .xlsx uses the named sheet
// (first sheet when empty), anything else is read as CSV.
func Open(path, sheet string) itempool.Source {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return NewXLSX(path, sheet)
	}
	return NewCSV(path)
}

// rowsFromTable maps a header row plus data rows onto raw item rows. Unknown
// columns are ignored and blank rows are dropped.
func rowsFromTable(records [][]string) ([]domain.RawRow, error) {
	if len(records) == 0 {
		return nil, nil
	}
	columns := make(map[string]int, len(records[0]))
	for idx, h := range records[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := headerAliases[key]; ok {
			if _, seen := columns[field]; !seen {
				columns[field] = idx
			}
		}
	}
	if _, ok := columns["id"]; !ok {
		return nil, ErrMissingIDColumn
	}

	cell := func(record []string, field string) string {
		idx, ok := columns[field]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	out := make([]domain.RawRow, 0, len(records)-1)
	for _, record := range records[1:] {
		if blank(record) {
			continue
		}
		out = append(out, domain.RawRow{
			ID:               cell(record, "id"),
			Topic:            cell(record, "topic"),
			Week:             cell(record, "week"),
			Image:            cell(record, "image"),
			Answers:          cell(record, "answers"),
			QType:            cell(record, "q_type"),
			UnfilledTemplate: cell(record, "unfilled_template"),
		})
	}
	return out, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func wrapLoad(path string, err error) error {
	return fmt.Errorf("load items from %s: %w", path, err)
}
