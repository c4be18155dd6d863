package reviews

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
)

// PostbackResult — тело ответа универсального обработчика постбэков.
type PostbackResult struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// PaymentLinkPayload — постбэк об оплате заказа по платёжной ссылке.
type PaymentLinkPayload struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	PaymentLink   string `json:"payment_link"`
	Discount      string `json:"discount"`
	PaymentAmount string `json:"payment_amount"`
	OrderAmount   string `json:"order_amount"`
}

// HandlePostback — универсальная точка входа постбэков с типом сущности в
// теле. Ключ проверяется против общего секрета, на сегодня единственная
// сущность — payment_link.
func (s *Service) HandlePostback(ctx context.Context, entity, apiKey string, p PaymentLinkPayload) PostbackResult {
	if entity == "" || apiKey == "" {
		return PostbackResult{Status: "failed", Error: "missing_parameter"}
	}
	if apiKey != s.cfg.APIKey {
		return PostbackResult{Status: "failed", Error: "invalid_api_key"}
	}

	var err error
	switch entity {
	case "payment_link":
		err = s.MarkOrderPaid(ctx, p)
	default:
		err = ErrInvalidEntity
	}

	switch {
	case err == nil:
		return PostbackResult{Status: "success"}
	case errors.Is(err, ErrInvalidEntity):
		return PostbackResult{Status: "failed", Error: "invalid_entity"}
	default:
		return PostbackResult{Status: "failed", Message: err.Error()}
	}
}

// MarkOrderPaid переводит COD-заказ в предоплаченный после оплаты по
// ссылке: способ оплаты меняется, скидка оформляется купоном, в заказ
// пишется аудит-заметка.
func (s *Service) MarkOrderPaid(ctx context.Context, p PaymentLinkPayload) error {
	if p.OrderID == "" {
		return ErrMissingParameter
	}

	rec, err := s.getReview(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}
	if p.Status != "paid" {
		return errors.Wrapf(ErrPreconditionFailed, "unexpected payment status %q", p.Status)
	}

	order, err := s.host.GetOrder(ctx, rec.OrderID)
	if err != nil {
		return errors.Wrap(err, "get host order")
	}
	if order == nil {
		return ErrNotFound
	}
	if !isCashOnDelivery(order.PaymentMethod) {
		return errors.Wrapf(ErrPreconditionFailed, "order %s is not cash on delivery", order.Number)
	}

	order.PaymentMethod = "other"

	// Сбой купонного сценария валит весь постбэк: заказ не сохраняется,
	// ответ — failed, антифрод повторит попытку.
	if p.Discount != "" && p.Discount != "0" {
		if err := s.applyDiscountCoupon(ctx, order.ID, p.Discount); err != nil {
			return errors.Wrap(err, "apply discount coupon")
		}
	}

	if err := s.host.SaveOrder(ctx, order); err != nil {
		return errors.Wrap(err, "save order")
	}

	note := fmt.Sprintf(
		"Order paid via Riskwatch payment link. Payment amount: %s, order amount: %s, discount: %s. Link: %s",
		p.PaymentAmount, p.OrderAmount, p.Discount, p.PaymentLink)
	if err := s.host.AddOrderNote(ctx, order.ID, note); err != nil {
		slog.Error("add order note", "order_number", order.Number, "error", err.Error())
	}
	return nil
}

// Купон одноразовый: создаётся, применяется к заказу и сразу удаляется,
// чтобы код нельзя было использовать повторно. Шаги не атомарны.
func (s *Service) applyDiscountCoupon(ctx context.Context, orderID, amount string) error {
	if s.coupons == nil {
		return errors.New("coupon store is not configured")
	}
	code := "PREPAYCOD_" + orderID

	couponID, err := s.coupons.CreateCoupon(ctx, code, amount)
	if err != nil {
		return errors.Wrap(err, "create coupon")
	}
	if err := s.coupons.ApplyCoupon(ctx, orderID, code); err != nil {
		return errors.Wrap(err, "apply coupon")
	}
	if err := s.coupons.DeleteCoupon(ctx, couponID); err != nil {
		return errors.Wrap(err, "delete coupon")
	}
	return nil
}
