package pgreview

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS order_reviews (
  id BIGSERIAL PRIMARY KEY,
  order_id TEXT NOT NULL,
  order_number TEXT NOT NULL,
  status TEXT NOT NULL,
  flag TEXT NOT NULL DEFAULT '',
  action TEXT NOT NULL DEFAULT '',
  message TEXT NOT NULL DEFAULT '',
  score TEXT NOT NULL DEFAULT '',
  date_created TIMESTAMPTZ NOT NULL,
  date_modified TIMESTAMPTZ NOT NULL,
  UNIQUE (order_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_order_reviews_order_number ON order_reviews(order_number)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
