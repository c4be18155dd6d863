package reviews

// Чистые правила смены локального статуса заказа по вердиктам антифрода.
// Сами правила ничего не пишут: вызывающий делает запись и логирует.

// ApproveIfDue returns the target status for a green/approved verdict.
// No-op when the approve status is unconfigured or already current,
// which is what keeps acknowledgment callbacks from looping.
func ApproveIfDue(current, approveStatus string) (string, bool) {
	if approveStatus == "" || approveStatus == current {
		return "", false
	}
	return approveStatus, true
}

// ReviewIfDue returns the target status for a red/flagged verdict.
func ReviewIfDue(current, reviewStatus string) (string, bool) {
	if reviewStatus == "" || reviewStatus == current {
		return "", false
	}
	return reviewStatus, true
}

// RejectIfDue returns the target status for a declined action. The decline
// must originate from the review status: an order that was never held for
// review cannot be declined.
func RejectIfDue(current, rejectStatus, reviewStatus string) (string, bool) {
	if rejectStatus == "" || rejectStatus == current {
		return "", false
	}
	if current != reviewStatus {
		return "", false
	}
	return rejectStatus, true
}

// ApproveOnAction — approve по действию с дашборда; то же ревью-условие,
// что и у RejectIfDue.
func ApproveOnAction(current, approveStatus, reviewStatus string) (string, bool) {
	if approveStatus == "" || approveStatus == current {
		return "", false
	}
	if current != reviewStatus {
		return "", false
	}
	return approveStatus, true
}

// Таблица обмена статусами: локальный статус -> код действия для антифрода.
// Пустой код означает "не уведомлять, только очистить action в записи".
var actionExchange = map[string]string{
	"pending":    "",
	"processing": "approved",
	"on-hold":    "onhold",
	"completed":  "approved",
	"cancelled":  "declined",
	"refunded":   "",
	"failed":     "",
}

func ExchangeAction(newStatus string) string {
	return actionExchange[newStatus]
}
