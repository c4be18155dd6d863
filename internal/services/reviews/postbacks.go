package reviews

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/BearBump/RiskSync/internal/hosting"
	"github.com/BearBump/RiskSync/internal/models"
	"github.com/pkg/errors"
)

// Score хранится строкой, но удалённая сторона шлёт его то строкой, то
// числом — принимаем оба варианта.
type Score string

func (s *Score) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = Score(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = Score(n.String())
	return nil
}

// ScorePostback — вердикт скоринга по заказу.
type ScorePostback struct {
	OrderID string `json:"order_id"`
	Flag    string `json:"flag"`
	Score   Score  `json:"score"`
}

// ActionPostback — решение аналитика с дашборда антифрода.
type ActionPostback struct {
	OrderID    string `json:"order_id"`
	ActionType string `json:"action_type"`
	Message    string `json:"message"`
}

// ShippingAddressPostback — исправленный адрес доставки.
type ShippingAddressPostback struct {
	OrderID  string `json:"order_id"`
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Zipcode  string `json:"zipcode"`
	Phone    string `json:"phone"`
}

func (p ShippingAddressPostback) isEmpty() bool {
	return p.Name == "" && p.Address1 == "" && p.Address2 == "" &&
		p.City == "" && p.Region == "" && p.Country == "" &&
		p.Zipcode == "" && p.Phone == ""
}

// ApplyScore обновляет запись проверки вердиктом и, при необходимости,
// двигает статус заказа в магазине.
func (s *Service) ApplyScore(ctx context.Context, p ScorePostback) error {
	if p.OrderID == "" {
		return ErrMissingParameter
	}

	unlock := s.lockOrder(ctx, p.OrderID)
	defer unlock()

	rec, err := s.getReview(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}

	// Заказ ищем до записи вердикта: без заказа в магазине постбэк
	// отклоняется целиком, запись остаётся нетронутой.
	order, err := s.host.GetOrder(ctx, rec.OrderID)
	if err != nil {
		return errors.Wrap(err, "get host order")
	}
	if order == nil {
		return ErrNotFound
	}

	status, flag, known := models.ParseFlag(p.Flag)
	if !known {
		slog.Warn("unknown score flag, treating as hold",
			"order_number", rec.OrderNumber, "flag", p.Flag)
	}

	if err := s.store.UpdateScore(ctx, rec.OrderNumber, status, flag, string(p.Score)); err != nil {
		return errors.Wrap(err, "update score")
	}

	switch flag {
	case models.FlagRed:
		if target, ok := ReviewIfDue(order.Status, s.cfg.ReviewStatus); ok {
			s.moveOrder(ctx, order.ID, target)
		}
	case models.FlagGreen:
		if target, ok := ApproveIfDue(order.Status, s.cfg.ApproveStatus); ok {
			s.moveOrder(ctx, order.ID, target)
		}
	}

	s.afterReviewMutation(ctx, rec.OrderNumber)
	return nil
}

// ApplyAction фиксирует решение аналитика и двигает заказ по таблице
// переходов, если он всё ещё в ревью-статусе.
func (s *Service) ApplyAction(ctx context.Context, p ActionPostback) error {
	if p.OrderID == "" {
		return ErrMissingParameter
	}

	unlock := s.lockOrder(ctx, p.OrderID)
	defer unlock()

	rec, err := s.getReview(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}

	order, err := s.host.GetOrder(ctx, rec.OrderID)
	if err != nil {
		return errors.Wrap(err, "get host order")
	}
	if order == nil {
		return ErrNotFound
	}

	action, known := models.ParseAction(p.ActionType)
	message := p.Message
	if !known {
		slog.Warn("unknown action type",
			"order_number", rec.OrderNumber, "action_type", p.ActionType)
		message = ""
	}

	if err := s.store.UpdateAction(ctx, rec.OrderNumber, action, message); err != nil {
		return errors.Wrap(err, "update action")
	}

	switch action {
	case models.ActionDeclined:
		if target, ok := RejectIfDue(order.Status, s.cfg.RejectStatus, s.cfg.ReviewStatus); ok {
			s.moveOrder(ctx, order.ID, target)
		}
	case models.ActionApproved:
		if target, ok := ApproveOnAction(order.Status, s.cfg.ApproveStatus, s.cfg.ReviewStatus); ok {
			s.moveOrder(ctx, order.ID, target)
		}
	}

	s.afterReviewMutation(ctx, rec.OrderNumber)
	return nil
}

// ApplyShippingAddress переносит исправленный адрес в заказ магазина.
// Запись проверки не трогается, кэш и события не затрагиваются.
func (s *Service) ApplyShippingAddress(ctx context.Context, p ShippingAddressPostback) error {
	if p.OrderID == "" || p.isEmpty() {
		return ErrMissingParameter
	}

	rec, err := s.getReview(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}

	order, err := s.host.GetOrder(ctx, rec.OrderID)
	if err != nil {
		return errors.Wrap(err, "get host order")
	}
	if order == nil {
		return ErrNotFound
	}

	applyShippingFields(&order.Shipping, p)

	if err := s.host.SaveOrder(ctx, order); err != nil {
		return errors.Wrap(err, "save order")
	}
	if err := s.host.AddOrderNote(ctx, order.ID, "Shipping Address updated by Riskwatch."); err != nil {
		slog.Error("add order note", "order_number", rec.OrderNumber, "error", err.Error())
	}
	return nil
}

// Непустые поля постбэка перекрывают текущие, пустые оставляют как есть.
func applyShippingFields(dst *hosting.Address, p ShippingAddressPostback) {
	if p.Name != "" {
		first, last := splitName(p.Name)
		dst.FirstName = first
		dst.LastName = last
	}
	if p.Address1 != "" {
		dst.Address1 = p.Address1
	}
	if p.Address2 != "" {
		dst.Address2 = p.Address2
	}
	if p.City != "" {
		dst.City = p.City
	}
	if p.Region != "" {
		dst.State = p.Region
	}
	if p.Country != "" {
		dst.Country = p.Country
	}
	if p.Zipcode != "" {
		dst.Postcode = p.Zipcode
	}
	if p.Phone != "" {
		dst.Phone = p.Phone
	}
}

// splitName: последний токен — фамилия, всё до него — имя.
// Одиночное имя целиком уходит в фамилию.
func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	i := strings.LastIndexByte(full, ' ')
	if i < 0 {
		return "", full
	}
	return strings.TrimSpace(full[:i]), full[i+1:]
}

func (s *Service) moveOrder(ctx context.Context, orderID, target string) {
	if err := s.host.UpdateStatus(ctx, orderID, target, noteByRiskwatch); err != nil {
		slog.Error("update order status", "order_id", orderID, "target", target, "error", err.Error())
	}
}
