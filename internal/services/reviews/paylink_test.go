package reviews

import (
	"context"
	"testing"

	"github.com/BearBump/RiskSync/internal/hosting/fake"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type failingCoupons struct{}

func (failingCoupons) CreateCoupon(context.Context, string, string) (string, error) {
	return "", errors.New("coupon api down")
}

func (failingCoupons) ApplyCoupon(context.Context, string, string) error {
	return errors.New("coupon api down")
}

func (failingCoupons) DeleteCoupon(context.Context, string) error {
	return errors.New("coupon api down")
}

func TestHandlePostback_PaymentLink(t *testing.T) {
	ctx := context.Background()
	svc, store, host, _ := newTestService(t)
	host.PutOrder(testOrder())
	_, err := store.InsertReview(ctx, "42", "1042")
	require.NoError(t, err)

	res := svc.HandlePostback(ctx, "payment_link", "secret-key", PaymentLinkPayload{
		OrderID:       "1042",
		Status:        "paid",
		PaymentLink:   "https://pay.riskwatch.io/l/abc",
		Discount:      "25.00",
		PaymentAmount: "225.00",
		OrderAmount:   "250.00",
	})
	require.Equal(t, PostbackResult{Status: "success"}, res)

	got, err := host.GetOrder(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, "other", got.PaymentMethod)

	// Купон применён к заказу и удалён из каталога.
	require.Equal(t, []string{"PREPAYCOD_42"}, host.AppliedCoupons("42"))
	require.Zero(t, host.CouponCount())

	notes := host.Notes("42")
	require.Len(t, notes, 1)
	require.Contains(t, notes[0], "225.00")
	require.Contains(t, notes[0], "https://pay.riskwatch.io/l/abc")
}

func TestHandlePostback_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("missing entity or key", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)
		res := svc.HandlePostback(ctx, "", "secret-key", PaymentLinkPayload{})
		require.Equal(t, PostbackResult{Status: "failed", Error: "missing_parameter"}, res)
		res = svc.HandlePostback(ctx, "payment_link", "", PaymentLinkPayload{})
		require.Equal(t, PostbackResult{Status: "failed", Error: "missing_parameter"}, res)
	})

	t.Run("wrong api key", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)
		res := svc.HandlePostback(ctx, "payment_link", "wrong", PaymentLinkPayload{OrderID: "1042"})
		require.Equal(t, PostbackResult{Status: "failed", Error: "invalid_api_key"}, res)
	})

	t.Run("unknown entity", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)
		res := svc.HandlePostback(ctx, "chargeback", "secret-key", PaymentLinkPayload{})
		require.Equal(t, PostbackResult{Status: "failed", Error: "invalid_entity"}, res)
	})

	t.Run("payment failure carries message, no error code", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)
		res := svc.HandlePostback(ctx, "payment_link", "secret-key", PaymentLinkPayload{OrderID: "9999", Status: "paid"})
		require.Equal(t, "failed", res.Status)
		require.Empty(t, res.Error)
		require.NotEmpty(t, res.Message)
	})
}

func TestMarkOrderPaid_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown record", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)
		err := svc.MarkOrderPaid(ctx, PaymentLinkPayload{OrderID: "1042", Status: "paid"})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("status other than paid", func(t *testing.T) {
		svc, store, host, _ := newTestService(t)
		host.PutOrder(testOrder())
		_, err := store.InsertReview(ctx, "42", "1042")
		require.NoError(t, err)

		err = svc.MarkOrderPaid(ctx, PaymentLinkPayload{OrderID: "1042", Status: "pending"})
		require.ErrorIs(t, err, ErrPreconditionFailed)

		got, err := host.GetOrder(ctx, "42")
		require.NoError(t, err)
		require.Equal(t, "cod", got.PaymentMethod)
	})

	t.Run("order not cash on delivery", func(t *testing.T) {
		svc, store, host, _ := newTestService(t)
		o := testOrder()
		o.PaymentMethod = "card"
		host.PutOrder(o)
		_, err := store.InsertReview(ctx, "42", "1042")
		require.NoError(t, err)

		err = svc.MarkOrderPaid(ctx, PaymentLinkPayload{OrderID: "1042", Status: "paid"})
		require.ErrorIs(t, err, ErrPreconditionFailed)
	})

	t.Run("coupon failure aborts before save", func(t *testing.T) {
		store := newFakeReviewStore()
		host := fake.New()
		host.PutOrder(testOrder())
		_, err := store.InsertReview(ctx, "42", "1042")
		require.NoError(t, err)
		svc := New(testConfig(), store, host, failingCoupons{}, &fakeRemote{})

		err = svc.MarkOrderPaid(ctx, PaymentLinkPayload{OrderID: "1042", Status: "paid", Discount: "25.00"})
		require.Error(t, err)

		// Заказ не сохранён: способ оплаты остался cod.
		got, err := host.GetOrder(ctx, "42")
		require.NoError(t, err)
		require.Equal(t, "cod", got.PaymentMethod)
		require.Empty(t, host.Notes("42"))

		res := svc.HandlePostback(ctx, "payment_link", "secret-key", PaymentLinkPayload{OrderID: "1042", Status: "paid", Discount: "25.00"})
		require.Equal(t, "failed", res.Status)
	})

	t.Run("zero discount skips coupon", func(t *testing.T) {
		svc, store, host, _ := newTestService(t)
		host.PutOrder(testOrder())
		_, err := store.InsertReview(ctx, "42", "1042")
		require.NoError(t, err)

		err = svc.MarkOrderPaid(ctx, PaymentLinkPayload{OrderID: "1042", Status: "paid", Discount: "0"})
		require.NoError(t, err)
		require.Empty(t, host.AppliedCoupons("42"))
	})
}
