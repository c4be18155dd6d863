package pgreview

import (
	"context"
	"time"

	"github.com/BearBump/RiskSync/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const reviewColumns = `
  id, order_id, order_number,
  status, flag, action, message, score,
  date_created, date_modified`

// InsertReview создаёт стартовую запись со статусом HOLD.
// Повторная вставка для того же заказа — no-op: это и есть защита
// от двойной отправки заказа на скоринг.
func (s *Storage) InsertReview(ctx context.Context, orderID, orderNumber string) (bool, error) {
	now := time.Now().UTC()

	tag, err := s.db.Exec(ctx, `
INSERT INTO order_reviews (
  order_id, order_number, status, date_created, date_modified
)
VALUES ($1,$2,$3,$4,$4)
ON CONFLICT (order_id) DO NOTHING
`, orderID, orderNumber, models.ReviewStatusHold, now)
	if err != nil {
		return false, errors.Wrap(err, "insert review")
	}
	return tag.RowsAffected() > 0, nil
}

// GetByOrderRef ищет запись сначала по order_number, затем по order_id.
// Фолбэк покрывает устаревшие/переименованные ссылки со стороны антифрода.
func (s *Storage) GetByOrderRef(ctx context.Context, ref string) (*models.OrderReview, error) {
	r, err := s.getOne(ctx, `SELECT`+reviewColumns+` FROM order_reviews WHERE order_number = $1`, ref)
	if err != nil {
		return nil, err
	}
	if r != nil {
		return r, nil
	}
	return s.getOne(ctx, `SELECT`+reviewColumns+` FROM order_reviews WHERE order_id = $1`, ref)
}

func (s *Storage) getOne(ctx context.Context, query, arg string) (*models.OrderReview, error) {
	var r models.OrderReview
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&r.ID, &r.OrderID, &r.OrderNumber,
		&r.Status, &r.Flag, &r.Action, &r.Message, &r.Score,
		&r.DateCreated, &r.DateModified,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select review")
	}
	return &r, nil
}

// UpdateScore перезаписывает вердикт score-колбэка. Last-writer-wins:
// источник истины — антифрод, конфликтов не разрешаем.
func (s *Storage) UpdateScore(ctx context.Context, orderNumber, status, flag, score string) error {
	_, err := s.db.Exec(ctx, `
UPDATE order_reviews
SET status = $2, flag = $3, score = $4, date_modified = $5
WHERE order_number = $1
`, orderNumber, status, flag, score, time.Now().UTC())
	return errors.Wrap(err, "update review score")
}

func (s *Storage) UpdateAction(ctx context.Context, orderNumber, action, message string) error {
	_, err := s.db.Exec(ctx, `
UPDATE order_reviews
SET action = $2, message = $3, date_modified = $4
WHERE order_number = $1
`, orderNumber, action, message, time.Now().UTC())
	return errors.Wrap(err, "update review action")
}

func (s *Storage) PurgeAll(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM order_reviews`)
	if err != nil {
		return 0, errors.Wrap(err, "purge reviews")
	}
	return tag.RowsAffected(), nil
}
