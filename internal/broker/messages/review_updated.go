package messages

import "time"

// ReviewUpdated эмитится после каждой мутации записи проверки
// (score, action, эхо смены статуса). Best-effort, для даунстримов.
type ReviewUpdated struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	Flag        string    `json:"flag,omitempty"`
	Action      string    `json:"action,omitempty"`
	Score       string    `json:"score,omitempty"`
	Message     string    `json:"message,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
