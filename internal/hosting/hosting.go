package hosting

import (
	"context"
	"time"
)

// Коллабораторы хост-платформы (магазина). Ядро работает только через эти
// интерфейсы; реализация — HTTP-клиент к REST API магазина (wochttp)
// или in-memory fake в тестах.

type Address struct {
	FirstName string
	LastName  string
	Address1  string
	Address2  string
	City      string
	State     string
	Postcode  string
	Country   string
	Phone     string
}

func (a Address) IsEmpty() bool {
	return a == Address{}
}

type LineItem struct {
	ProductID string
	Name      string
	Quantity  int
	Total     string
}

type Order struct {
	ID     string
	Number string
	Status string

	Currency     string
	Total        string
	CustomerNote string

	PaymentMethod      string
	PaymentMethodTitle string

	BillingEmail string
	Billing      Address
	Shipping     Address

	// CustomerID пуст для гостевых заказов, тогда используется SessionID.
	CustomerID string
	SessionID  string
	DeviceIP   string

	Items []LineItem

	DateCreated time.Time
}

type OrderStore interface {
	// GetOrder возвращает (nil, nil), если заказ не найден.
	GetOrder(ctx context.Context, id string) (*Order, error)
	SaveOrder(ctx context.Context, o *Order) error
	UpdateStatus(ctx context.Context, orderID, status, note string) error
	AddOrderNote(ctx context.Context, orderID, note string) error
}

type CouponStore interface {
	CreateCoupon(ctx context.Context, code, amount string) (string, error)
	ApplyCoupon(ctx context.Context, orderID, code string) error
	DeleteCoupon(ctx context.Context, couponID string) error
}
