// Package itempool groups source rows into per-topic, per-week practice items.
package itempool

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"srp-quiz-service/internal/answer"
	"srp-quiz-service/internal/domain"
	"srp-quiz-service/internal/logger"
)

// Source fetches raw item rows (CSV, spreadsheet, database, ...).
type Source interface {
	LoadRows(ctx context.Context) ([]domain.RawRow, error)
}

// Key addresses one topic/week group.
type Key struct {
	Topic string
	Week  int
}

// Exclusion records a row that was dropped during load and why.
type Exclusion struct {
	Row    int
	ItemID string
	Reason string
}

// Pool is the loaded item set. The zero value is an empty pool.
type Pool struct {
	groups   map[Key][]domain.Item
	size     int
	excluded []Exclusion
}

// Load builds a pool from rows. Rows without a usable topic, week or answer key
// are excluded; a malformed source (no id, duplicate ids, nothing usable) fails
// the whole load and no partial pool is returned.
func Load(rows []domain.RawRow) (Pool, error) {
	p := Pool{groups: make(map[Key][]domain.Item)}
	seen := make(map[Key]map[string]struct{})

	for i, row := range rows {
		line := i + 1
		id := strings.TrimSpace(row.ID)
		if id == "" {
			return Pool{}, fmt.Errorf("row %d: missing id", line)
		}
		topic := NormalizeTopic(row.Topic)
		if topic == "" {
			p.excluded = append(p.excluded, Exclusion{Row: line, ItemID: id, Reason: "missing topic"})
			continue
		}
		week, err := strconv.Atoi(strings.TrimSpace(row.Week))
		if err != nil || week <= 0 {
			p.excluded = append(p.excluded, Exclusion{Row: line, ItemID: id, Reason: fmt.Sprintf("invalid week %q", row.Week)})
			continue
		}
		accepted := answer.Acceptable(row.Answers)
		if len(accepted) == 0 {
			p.excluded = append(p.excluded, Exclusion{Row: line, ItemID: id, Reason: "no acceptable answers"})
			continue
		}

		key := Key{Topic: topic, Week: week}
		if seen[key] == nil {
			seen[key] = make(map[string]struct{})
		}
		if _, dup := seen[key][id]; dup {
			return Pool{}, fmt.Errorf("row %d: %w %q in %s/week %d", line, domain.ErrDuplicateItem, id, topic, week)
		}
		seen[key][id] = struct{}{}

		p.groups[key] = append(p.groups[key], domain.Item{
			ID:               id,
			Topic:            topic,
			Week:             week,
			Image:            strings.TrimSpace(row.Image),
			QuestionType:     domain.ParseQuestionType(row.QType),
			UnfilledTemplate: row.UnfilledTemplate,
			Answers:          domain.NewAnswerKey(accepted),
		})
		p.size++
	}

	if p.size == 0 {
		return Pool{}, fmt.Errorf("no usable rows in %d source rows", len(rows))
	}
	return p, nil
}

// NormalizeTopic folds a topic cell to its lookup form.
func NormalizeTopic(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Items returns the ordered items for a topic in a week. The slice is shared; do not modify.
func (p Pool) Items(topic string, week int) []domain.Item {
	return p.groups[Key{Topic: NormalizeTopic(topic), Week: week}]
}

// Len is the number of loaded items.
func (p Pool) Len() int { return p.size }

// Excluded lists rows dropped during load.
func (p Pool) Excluded() []Exclusion {
	return append([]Exclusion(nil), p.excluded...)
}

// Keys lists the loaded groups ordered by week then topic.
func (p Pool) Keys() []Key {
	keys := make([]Key, 0, len(p.groups))
	for k := range p.groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Week != keys[j].Week {
			return keys[i].Week < keys[j].Week
		}
		return keys[i].Topic < keys[j].Topic
	})
	return keys
}

// Report logs the load summary and, at debug level, every excluded row.
func (p Pool) Report(log *logger.Logger) {
	if log == nil {
		return
	}
	log.Info("item pool loaded", "items", p.size, "groups", len(p.groups), "excluded", len(p.excluded))
	for _, ex := range p.excluded {
		log.Debug("item row excluded", "row", ex.Row, "item_id", ex.ItemID, "reason", ex.Reason)
	}
}
