package main

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/RiskSync/config"
	"github.com/BearBump/RiskSync/internal/broker/kafka"
	"github.com/BearBump/RiskSync/internal/broker/messages"
	"github.com/BearBump/RiskSync/internal/hosting"
	"github.com/BearBump/RiskSync/internal/hosting/fake"
	"github.com/BearBump/RiskSync/internal/integrations/riskwatch"
	"github.com/BearBump/RiskSync/internal/models"
	"github.com/BearBump/RiskSync/internal/services/reviews"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	recs map[string]*models.OrderReview
}

func (f *fakeStore) InsertReview(_ context.Context, orderID, orderNumber string) (bool, error) {
	if f.recs == nil {
		f.recs = map[string]*models.OrderReview{}
	}
	f.recs[orderID] = &models.OrderReview{OrderID: orderID, OrderNumber: orderNumber, Status: models.ReviewStatusHold}
	return true, nil
}

func (f *fakeStore) GetByOrderRef(_ context.Context, ref string) (*models.OrderReview, error) {
	for _, r := range f.recs {
		if r.OrderNumber == ref || r.OrderID == ref {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpdateScore(_ context.Context, orderNumber, status, flag, score string) error {
	return nil
}

func (f *fakeStore) UpdateAction(_ context.Context, orderNumber, action, message string) error {
	return nil
}

func (f *fakeStore) PurgeAll(_ context.Context) (int64, error) { return 0, nil }

type fakeRemote struct {
	mu      sync.Mutex
	created []string
	regs    int
}

func (f *fakeRemote) CreateOrder(_ context.Context, o riskwatch.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, o.OrderID)
	return nil
}

func (f *fakeRemote) snapshot() (int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs, append([]string{}, f.created...)
}
func (f *fakeRemote) Transaction(_ context.Context, _ riskwatch.Transaction) error { return nil }
func (f *fakeRemote) OrderStatus(_ context.Context, _ riskwatch.OrderStatus) error { return nil }
func (f *fakeRemote) CreateAccount(_ context.Context, _ riskwatch.Account) error   { return nil }
func (f *fakeRemote) Login(_ context.Context, _ riskwatch.Account) error           { return nil }
func (f *fakeRemote) LinkSessionToUser(_ context.Context, _ riskwatch.Account) error {
	return nil
}
func (f *fakeRemote) ClientAction(_ context.Context, _ riskwatch.ClientAction) error { return nil }
func (f *fakeRemote) RegisterPostbackURLs(_ context.Context, _ riskwatch.PostbackRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs++
	return nil
}

type consumerStub struct {
	msg *messages.OrderStatusChanged
}

func (c consumerStub) Consume(ctx context.Context, handler kafka.StatusHandler) error {
	if c.msg != nil {
		_ = handler(ctx, *c.msg)
	}
	<-ctx.Done()
	return ctx.Err()
}

func testService() (*reviews.Service, *fakeRemote, *fake.Store) {
	host := fake.New()
	remote := &fakeRemote{}
	cfg := config.RiskSyncConfig{
		Enabled:         true,
		APIKey:          "k",
		ApproveStatus:   "processing",
		ReviewStatus:    "on-hold",
		RejectStatus:    "cancelled",
		SubmitStatus:    "processing",
		PostbackBaseURL: "https://shop.example.com/riskwatch",
	}
	return reviews.New(cfg, &fakeStore{}, host, host, remote), remote, host
}

func TestRunRiskAPI_ServesAndConsumes(t *testing.T) {
	svc, remote, host := testService()
	host.PutOrder(&hosting.Order{
		ID:          "42",
		Number:      "1042",
		Status:      "processing",
		Total:       "10.00",
		DateCreated: time.Now(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := riskAPIOpts{
		httpAddr:      "127.0.0.1:0",
		topic:         "orders.status_changed",
		consumerGroup: "risk-api",
		onListen:      func(addr string) { addrCh <- addr },
	}

	cons := consumerStub{msg: &messages.OrderStatusChanged{
		OrderID:   "42",
		OldStatus: "pending",
		NewStatus: "processing",
	}}
	errCh := make(chan error, 1)
	go func() {
		errCh <- runRiskAPI(ctx, opts, svc, cons)
	}()

	httpAddr := <-addrCh

	resp, err := http.Get("http://" + httpAddr + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "ok", string(body))

	// Постбэки зарегистрированы при старте, событие из Kafka дошло до сервиса.
	require.Eventually(t, func() bool {
		regs, created := remote.snapshot()
		return regs == 1 && len(created) == 1
	}, 2*time.Second, 10*time.Millisecond)
	_, created := remote.snapshot()
	require.Equal(t, []string{"1042"}, created)

	cancel()
	require.Error(t, <-errCh)
}

func TestRunRiskAPI_StopsOnContextCancel(t *testing.T) {
	svc, _, _ := testService()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := riskAPIOpts{
		httpAddr: "127.0.0.1:0",
		onListen: func(addr string) { addrCh <- addr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runRiskAPI(ctx, opts, svc, consumerStub{})
	}()

	<-addrCh
	cancel()
	require.Error(t, <-errCh)
}
