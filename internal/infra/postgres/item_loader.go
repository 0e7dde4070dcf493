package postgres

import (
	"context"
	"fmt"

	"srp-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ItemLoader reads the item sheet rows from the items table in sheet order.
type ItemLoader struct {
	pool *pgxpool.Pool
}

func NewItemLoader(pool *pgxpool.Pool) *ItemLoader {
	return &ItemLoader{pool: pool}
}

func (l *ItemLoader) LoadRows(ctx context.Context) ([]domain.RawRow, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, topic, week, image, answers, q_type, unfilled_template FROM items ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	var out []domain.RawRow
	for rows.Next() {
		var r domain.RawRow
		if err := rows.Scan(&r.ID, &r.Topic, &r.Week, &r.Image, &r.Answers, &r.QType, &r.UnfilledTemplate); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	return out, nil
}

// ReplaceRows swaps the whole item table for rows in one transaction.
func (l *ItemLoader) ReplaceRows(ctx context.Context, rows []domain.RawRow) error {
	return l.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM items`); err != nil {
			return fmt.Errorf("clear items: %w", err)
		}
		batch := &pgx.Batch{}
		for i, r := range rows {
			batch.Queue(`INSERT INTO items (position, id, topic, week, image, answers, q_type, unfilled_template) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				i+1, r.ID, r.Topic, r.Week, r.Image, r.Answers, r.QType, r.UnfilledTemplate)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range rows {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert item %d: %w", i+1, err)
			}
		}
		return br.Close()
	})
}
