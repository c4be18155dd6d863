package reviews

import "github.com/pkg/errors"

var (
	// ErrNotFound — нет записи проверки или заказа в магазине.
	ErrNotFound = errors.New("review record not found")
	// ErrMissingParameter — в запросе нет обязательного поля.
	ErrMissingParameter = errors.New("missing parameter")
	// ErrInvalidEntity — неизвестный тип сущности в универсальном постбэке.
	ErrInvalidEntity = errors.New("invalid entity")
	// ErrPreconditionFailed — ожидаемая ветка, не фейл: заказ не в том
	// состоянии для операции.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrRemoteCall — транспортная или сервисная ошибка антифрода.
	ErrRemoteCall = errors.New("remote call failed")
)
