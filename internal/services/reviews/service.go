package reviews

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/RiskSync/config"
	"github.com/BearBump/RiskSync/internal/broker/messages"
	"github.com/BearBump/RiskSync/internal/hosting"
	"github.com/BearBump/RiskSync/internal/integrations/riskwatch"
	"github.com/BearBump/RiskSync/internal/models"
	"github.com/pkg/errors"
)

const noteByRiskwatch = "Updated by Riskwatch: "

type ReviewStore interface {
	InsertReview(ctx context.Context, orderID, orderNumber string) (bool, error)
	GetByOrderRef(ctx context.Context, ref string) (*models.OrderReview, error)
	UpdateScore(ctx context.Context, orderNumber, status, flag, score string) error
	UpdateAction(ctx context.Context, orderNumber, action, message string) error
	PurgeAll(ctx context.Context) (int64, error)
}

type Remote interface {
	CreateOrder(ctx context.Context, o riskwatch.Order) error
	Transaction(ctx context.Context, t riskwatch.Transaction) error
	OrderStatus(ctx context.Context, st riskwatch.OrderStatus) error
	CreateAccount(ctx context.Context, a riskwatch.Account) error
	Login(ctx context.Context, a riskwatch.Account) error
	LinkSessionToUser(ctx context.Context, a riskwatch.Account) error
	ClientAction(ctx context.Context, a riskwatch.ClientAction) error
	RegisterPostbackURLs(ctx context.Context, reg riskwatch.PostbackRegistration) error
}

type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Service struct {
	cfg     config.RiskSyncConfig
	store   ReviewStore
	host    hosting.OrderStore
	coupons hosting.CouponStore
	remote  Remote

	cache    BytesCache
	cacheTTL time.Duration

	locker  Locker
	lockTTL time.Duration

	rl          RateLimiter
	rlPerMinute int64

	producer Producer
	topic    string
}

func New(cfg config.RiskSyncConfig, store ReviewStore, host hosting.OrderStore, coupons hosting.CouponStore, remote Remote) *Service {
	s := &Service{
		cfg:     cfg,
		store:   store,
		host:    host,
		coupons: coupons,
		remote:  remote,
		lockTTL: 30 * time.Second,
	}
	if s.cfg.SubmitStatus == "" {
		s.cfg.SubmitStatus = "processing"
	}
	return s
}

func (s *Service) WithCache(c BytesCache, ttl time.Duration) *Service {
	if c != nil && ttl > 0 {
		s.cache = c
		s.cacheTTL = ttl
	}
	return s
}

func (s *Service) WithLocker(l Locker, ttl time.Duration) *Service {
	s.locker = l
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

func (s *Service) WithRateLimiter(rl RateLimiter, perMinute int64) *Service {
	if rl != nil && perMinute > 0 {
		s.rl = rl
		s.rlPerMinute = perMinute
	}
	return s
}

func (s *Service) WithProducer(p Producer, topic string) *Service {
	if p != nil && topic != "" {
		s.producer = p
		s.topic = topic
	}
	return s
}

func (s *Service) APIKey() string { return s.cfg.APIKey }

// HandleStatusChanged обрабатывает смену локального статуса заказа.
// Сначала всегда проверка на первичную отправку (no-op, если запись уже
// есть — это и есть защита от петли), затем зеркалирование статуса и эхо
// действия на антифрод при выполненных предусловиях.
func (s *Service) HandleStatusChanged(ctx context.Context, msg messages.OrderStatusChanged) error {
	if !s.cfg.Enabled {
		return nil
	}
	if msg.OrderID == "" {
		return ErrMissingParameter
	}

	order, err := s.host.GetOrder(ctx, msg.OrderID)
	if err != nil {
		return errors.Wrap(err, "get host order")
	}
	if order == nil {
		slog.Debug("status change for unknown order", "order_id", msg.OrderID)
		return nil
	}

	slog.Debug("order status changed",
		"order_number", order.Number, "old", msg.OldStatus, "new", msg.NewStatus)

	unlock := s.lockOrder(ctx, order.Number)
	defer unlock()

	// Сторона антифрода недоступна — локальный переход не откатываем.
	if err := s.submitIfEligible(ctx, order); err != nil {
		slog.Error("submit order", "order_number", order.Number, "error", err.Error())
	}

	rec, err := s.store.GetByOrderRef(ctx, order.Number)
	if err != nil {
		return errors.Wrap(err, "get review")
	}
	if rec == nil {
		return nil
	}

	s.allowRemote(ctx)
	if err := s.remote.OrderStatus(ctx, riskwatch.OrderStatus{
		OrderID:     order.Number,
		OrderStatus: "_wo_" + msg.NewStatus,
	}); err != nil {
		slog.Error("mirror order status", "order_number", order.Number, "error", err.Error())
	}

	// Эхо в сторону антифрода: только пока заказ был в ревью, вердикт
	// FLAGGED и человек на дашборде ещё не принял решение.
	if msg.OldStatus != s.cfg.ReviewStatus ||
		rec.Status != models.ReviewStatusFlagged ||
		rec.Action != models.ActionNone {
		return nil
	}

	note := "Status updated on clients dashboard. New Status: " + msg.NewStatus
	code := ExchangeAction(msg.NewStatus)

	if code != "" {
		s.allowRemote(ctx)
		if err := s.remote.ClientAction(ctx, riskwatch.ClientAction{
			Secret:         s.cfg.APIKey,
			OrderID:        order.Number,
			OrderTimestamp: msTimestamp(order.DateCreated),
			ActionType:     code,
			Message:        note,
		}); err != nil {
			slog.Error("client action", "order_number", order.Number, "error", err.Error())
		}
		if err := s.store.UpdateAction(ctx, rec.OrderNumber, strings.ToUpper(code), note); err != nil {
			return errors.Wrap(err, "update review action")
		}
	} else {
		// Пустой код действия: удалённый вызов подавляется, action в записи
		// очищается.
		if err := s.store.UpdateAction(ctx, rec.OrderNumber, models.ActionNone, note); err != nil {
			return errors.Wrap(err, "clear review action")
		}
	}

	s.afterReviewMutation(ctx, rec.OrderNumber)
	return nil
}

// submitIfEligible отправляет заказ на скоринг, когда он впервые попадает в
// submit-статус. Запись создаётся только после успешных createOrder и
// transaction, чтобы следующая смена статуса могла повторить отправку.
func (s *Service) submitIfEligible(ctx context.Context, order *hosting.Order) error {
	if order.Status != s.cfg.SubmitStatus {
		return nil
	}

	rec, err := s.store.GetByOrderRef(ctx, order.ID)
	if err != nil {
		return errors.Wrap(err, "check existing review")
	}
	if rec != nil {
		slog.Debug("order already sent, submission skipped", "order_number", order.Number)
		return nil
	}

	ro, txn := buildRemoteOrder(order)

	s.allowRemote(ctx)
	if err := s.remote.CreateOrder(ctx, ro); err != nil {
		return errors.Wrapf(ErrRemoteCall, "create order: %v", err)
	}
	s.allowRemote(ctx)
	if err := s.remote.Transaction(ctx, txn); err != nil {
		return errors.Wrapf(ErrRemoteCall, "transaction: %v", err)
	}

	if _, err := s.store.InsertReview(ctx, order.ID, order.Number); err != nil {
		return errors.Wrap(err, "insert review")
	}

	slog.Debug("order sent for scoring", "order_number", order.Number)
	s.afterReviewMutation(ctx, order.Number)
	return nil
}

func buildRemoteOrder(order *hosting.Order) (riskwatch.Order, riskwatch.Transaction) {
	items := make([]riskwatch.Item, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, riskwatch.Item{
			Price:        it.Total,
			Quantity:     it.Quantity,
			ProductTitle: it.Name,
			ItemID:       it.ProductID,
			CurrencyCode: order.Currency,
			Country:      order.Billing.Country,
		})
	}

	billing := toRemoteAddress(order.Billing)
	shipping := billing
	if !order.Shipping.IsEmpty() {
		shipping = toRemoteAddress(order.Shipping)
	}

	payment := riskwatch.PaymentMethod{
		PaymentType:    order.PaymentMethod,
		Amount:         order.Total,
		CurrencyCode:   order.Currency,
		PaymentGateway: order.PaymentMethodTitle,
		AccountName:    strings.TrimSpace(order.Billing.FirstName + " " + order.Billing.LastName),
	}

	ro := riskwatch.Order{
		UserID:          order.CustomerID,
		DeviceIP:        order.DeviceIP,
		OriginTimestamp: msTimestamp(order.DateCreated),
		OrderID:         order.Number,
		UserEmail:       order.BillingEmail,
		Amount:          order.Total,
		CurrencyCode:    order.Currency,
		IsPrePaid:       !isCashOnDelivery(order.PaymentMethod),
		BillingAddress:  &billing,
		ShippingAddress: &shipping,
		Items:           items,
		PaymentMethods:  []riskwatch.PaymentMethod{payment},
	}
	if order.CustomerID == "" {
		ro.SessionID = order.SessionID
	}
	if order.CustomerNote != "" {
		ro.CustomInfo = map[string]string{"order_notes": order.CustomerNote}
	}

	txn := riskwatch.Transaction{
		Order:             ro,
		PaymentMethod:     &payment,
		TransactionID:     order.Number,
		TransactionType:   "_sale",
		TransactionStatus: "_success",
	}
	txn.PaymentMethods = nil
	txn.CustomInfo = nil

	return ro, txn
}

func toRemoteAddress(a hosting.Address) riskwatch.Address {
	return riskwatch.Address{
		Name:     strings.TrimSpace(a.FirstName + " " + a.LastName),
		Address1: a.Address1,
		Address2: a.Address2,
		City:     a.City,
		Country:  a.Country,
		Region:   a.State,
		Zipcode:  a.Postcode,
		Phone:    a.Phone,
	}
}

func isCashOnDelivery(method string) bool {
	return method == "cod" || method == "robu_cod"
}

// RegisterCustomer создаёт аккаунт покупателя на стороне антифрода и
// привязывает сессию. Оба вызова best-effort.
func (s *Service) RegisterCustomer(ctx context.Context, customerID, email, sessionID, deviceIP string) {
	if !s.cfg.Enabled {
		return
	}
	slog.Debug("creating customer on riskwatch", "customer_id", customerID)

	s.allowRemote(ctx)
	if err := s.remote.CreateAccount(ctx, riskwatch.Account{
		UserID:          customerID,
		SessionID:       sessionID,
		DeviceIP:        deviceIP,
		OriginTimestamp: msTimestamp(time.Now()),
		UserEmail:       email,
		AccountStatus:   "_active",
	}); err != nil {
		slog.Error("create account", "customer_id", customerID, "error", err.Error())
	}

	s.linkSession(ctx, customerID, sessionID)
}

// LoginCustomer сообщает антифроду об успешном входе покупателя.
func (s *Service) LoginCustomer(ctx context.Context, userID, sessionID, deviceIP string) {
	if !s.cfg.Enabled {
		return
	}

	s.allowRemote(ctx)
	if err := s.remote.Login(ctx, riskwatch.Account{
		UserID:          userID,
		SessionID:       sessionID,
		DeviceIP:        deviceIP,
		OriginTimestamp: msTimestamp(time.Now()),
		LoginStatus:     "_success",
	}); err != nil {
		slog.Error("login", "user_id", userID, "error", err.Error())
	}

	s.linkSession(ctx, userID, sessionID)
}

func (s *Service) linkSession(ctx context.Context, userID, sessionID string) {
	s.allowRemote(ctx)
	if err := s.remote.LinkSessionToUser(ctx, riskwatch.Account{
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		slog.Error("link session to user", "user_id", userID, "error", err.Error())
	}
}

// RegisterPostbacks единоразово регистрирует вебхук-адреса этого сервиса
// на стороне антифрода.
func (s *Service) RegisterPostbacks(ctx context.Context) error {
	if !s.cfg.Enabled || s.cfg.PostbackBaseURL == "" || s.cfg.APIKey == "" {
		return nil
	}
	base := strings.TrimRight(s.cfg.PostbackBaseURL, "/")
	return s.remote.RegisterPostbackURLs(ctx, riskwatch.PostbackRegistration{
		ScorePostback:           base + "/scorepostback",
		ActionPostback:          base + "/actionpostback",
		ShippingAddressPostback: base + "/shippingaddresspostback",
		URL:                     base + "/postbackhandler",
		Secret:                  s.cfg.APIKey,
	})
}

// GetReview возвращает запись проверки по номеру или ID заказа.
func (s *Service) GetReview(ctx context.Context, ref string) (*models.OrderReview, error) {
	if ref == "" {
		return nil, ErrMissingParameter
	}
	return s.getReview(ctx, ref)
}

// PurgeAll удаляет все записи проверок (операторское действие).
func (s *Service) PurgeAll(ctx context.Context) (int64, error) {
	return s.store.PurgeAll(ctx)
}

func (s *Service) getReview(ctx context.Context, ref string) (*models.OrderReview, error) {
	if s.cache != nil {
		if b, ok, err := s.cache.Get(ctx, reviewKey(ref)); err == nil && ok {
			var r models.OrderReview
			if json.Unmarshal(b, &r) == nil {
				return &r, nil
			}
		}
	}

	rec, err := s.store.GetByOrderRef(ctx, ref)
	if err != nil {
		return nil, errors.Wrap(err, "get review")
	}
	if rec != nil && s.cache != nil {
		b, _ := json.Marshal(rec)
		_ = s.cache.Set(ctx, reviewKey(rec.OrderNumber), b, s.cacheTTL)
	}
	return rec, nil
}

// afterReviewMutation перечитывает запись, обновляет кэш и публикует
// событие reviews.updated. Всё best-effort.
func (s *Service) afterReviewMutation(ctx context.Context, orderNumber string) {
	rec, err := s.store.GetByOrderRef(ctx, orderNumber)
	if err != nil || rec == nil {
		return
	}

	if s.cache != nil {
		b, _ := json.Marshal(rec)
		_ = s.cache.Set(ctx, reviewKey(rec.OrderNumber), b, s.cacheTTL)
	}

	if s.producer != nil {
		msg := messages.ReviewUpdated{
			OrderID:     rec.OrderID,
			OrderNumber: rec.OrderNumber,
			Status:      rec.Status,
			Flag:        rec.Flag,
			Action:      rec.Action,
			Score:       rec.Score,
			Message:     rec.Message,
			UpdatedAt:   rec.DateModified,
		}
		b, _ := json.Marshal(msg)
		if err := s.producer.Publish(ctx, s.topic, []byte(rec.OrderNumber), b); err != nil {
			slog.Error("publish review updated", "order_number", rec.OrderNumber, "error", err.Error())
		}
	}
}

// lockOrder берёт per-order лок; при недоступном redis деградирует до
// исходного racy-поведения, а не валит вебхук.
func (s *Service) lockOrder(ctx context.Context, orderNumber string) func() {
	if s.locker == nil || orderNumber == "" {
		return func() {}
	}
	key := "lock:order:" + orderNumber
	ok, err := s.locker.Lock(ctx, key, s.lockTTL)
	if err != nil || !ok {
		slog.Warn("order lock not acquired", "order_number", orderNumber)
		return func() {}
	}
	return func() { _ = s.locker.Unlock(ctx, key) }
}

func (s *Service) allowRemote(ctx context.Context) {
	if s.rl == nil || s.rlPerMinute <= 0 {
		return
	}
	minuteKey := fmt.Sprintf("rl:riskwatch:%s", time.Now().UTC().Format("200601021504"))
	allowed, n, err := s.rl.Allow(ctx, minuteKey, s.rlPerMinute, 70*time.Second)
	if err != nil {
		return
	}
	if !allowed {
		// Слишком много запросов в минуту: подождём немного, чтобы
		// разгрузить антифрод.
		slog.Warn("remote rate limit exceeded", "count", n)
		time.Sleep(500 * time.Millisecond)
	}
}

func reviewKey(ref string) string {
	return fmt.Sprintf("review:%s:current", ref)
}

func msTimestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
