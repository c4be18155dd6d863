package models

import "time"

// Статус проверки заказа на стороне антифрода (жизненный цикл вердикта).
const (
	ReviewStatusHold     = "HOLD"
	ReviewStatusApproved = "APPROVED"
	ReviewStatusFlagged  = "FLAGGED"
)

// Флаг из score-колбэка.
const (
	FlagNone  = ""
	FlagRed   = "RED"
	FlagGreen = "GREEN"
)

// Действие из action-колбэка или эха смены локального статуса.
const (
	ActionNone     = ""
	ActionApproved = "APPROVED"
	ActionDeclined = "DECLINED"
)

// OrderReview — локальная запись о заказе, отправленном на скоринг.
// Ровно одна запись на заказ; отсутствие записи означает "ещё не отправлен".
type OrderReview struct {
	ID           uint64
	OrderID      string
	OrderNumber  string
	Status       string
	Flag         string
	Action       string
	Message      string
	Score        string
	DateCreated  time.Time
	DateModified time.Time
}

// ParseFlag maps the remote service's raw score flag onto the record's
// (status, flag) pair. Unknown values fall back to HOLD with an empty flag,
// same as the remote dashboard's behavior; known reports false so callers
// can log the unrecognized input.
func ParseFlag(raw string) (status, flag string, known bool) {
	switch raw {
	case "red":
		return ReviewStatusFlagged, FlagRed, true
	case "green":
		return ReviewStatusApproved, FlagGreen, true
	default:
		return ReviewStatusHold, FlagNone, false
	}
}

// ParseAction maps the remote service's action_type onto the record's action
// value. Unknown values clear the action.
func ParseAction(raw string) (action string, known bool) {
	switch raw {
	case "approved":
		return ActionApproved, true
	case "declined":
		return ActionDeclined, true
	default:
		return ActionNone, false
	}
}
