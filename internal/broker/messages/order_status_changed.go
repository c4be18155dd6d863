package messages

import "time"

// OrderStatusChanged публикуется хост-платформой при каждой смене статуса
// заказа. Статусы приходят уже без префикса "wc-".
type OrderStatusChanged struct {
	OrderID   string    `json:"order_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	OccurredAt time.Time `json:"occurred_at"`
}
