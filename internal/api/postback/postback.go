package postback

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BearBump/RiskSync/internal/models"
	"github.com/BearBump/RiskSync/internal/services/reviews"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"
)

const apiKeyHeader = "X-Riskwatch-Api-Key"

// Тела ответов вебхуков зафиксированы контрактом антифрод-сервиса.
var (
	bodySuccess     = []byte(`{"Success":"Success"}`)
	bodyAuthFailed  = []byte(`{"Error":"Authentication Failed"}`)
	bodyBadResponse = []byte(`{"Error":"Response Incorrect"}`)
)

type reviewsService interface {
	ApplyScore(ctx context.Context, p reviews.ScorePostback) error
	ApplyAction(ctx context.Context, p reviews.ActionPostback) error
	ApplyShippingAddress(ctx context.Context, p reviews.ShippingAddressPostback) error
	HandlePostback(ctx context.Context, entity, apiKey string, p reviews.PaymentLinkPayload) reviews.PostbackResult
	GetReview(ctx context.Context, ref string) (*models.OrderReview, error)
	PurgeAll(ctx context.Context) (int64, error)
}

type API struct {
	svc    reviewsService
	apiKey string

	swaggerPath string
	ready       func(ctx context.Context) error
}

func New(svc reviewsService, apiKey string) *API {
	return &API{svc: svc, apiKey: apiKey}
}

func (a *API) WithSwagger(path string) *API {
	a.swaggerPath = path
	return a
}

// WithReadiness задаёт проверку готовности зависимостей для /readyz.
func (a *API) WithReadiness(fn func(ctx context.Context) error) *API {
	a.ready = fn
	return a
}

func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)

	if a.swaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, req *http.Request) {
			http.ServeFile(w, req, a.swaggerPath)
		})
		r.Get("/docs/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger.json"),
		))
	}

	r.Post("/scorepostback", a.withAPIKey(a.handleScore))
	r.Post("/actionpostback", a.withAPIKey(a.handleAction))
	r.Post("/shippingaddresspostback", a.withAPIKey(a.handleShippingAddress))
	r.Post("/postbackhandler", a.handleGeneric)

	r.Get("/reviews/{orderRef}", a.withAPIKey(a.handleGetReview))
	r.Post("/admin/purge", a.withAPIKey(a.handlePurge))

	return r
}

// withAPIKey проверяет ключ из заголовка. Контракт антифрода знает только
// 200 и 400, поэтому отказ в авторизации — тоже 400.
func (a *API) withAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if a.apiKey == "" || req.Header.Get(apiKeyHeader) != a.apiKey {
			writeRaw(w, http.StatusBadRequest, bodyAuthFailed)
			return
		}
		next(w, req)
	}
}

func (a *API) handleScore(w http.ResponseWriter, req *http.Request) {
	var p reviews.ScorePostback
	if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
		writeRaw(w, http.StatusBadRequest, bodyBadResponse)
		return
	}
	a.applyAndReply(w, req, "score", func() error {
		return a.svc.ApplyScore(req.Context(), p)
	})
}

func (a *API) handleAction(w http.ResponseWriter, req *http.Request) {
	var p reviews.ActionPostback
	if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
		writeRaw(w, http.StatusBadRequest, bodyBadResponse)
		return
	}
	a.applyAndReply(w, req, "action", func() error {
		return a.svc.ApplyAction(req.Context(), p)
	})
}

func (a *API) handleShippingAddress(w http.ResponseWriter, req *http.Request) {
	var p reviews.ShippingAddressPostback
	if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
		writeRaw(w, http.StatusBadRequest, bodyBadResponse)
		return
	}
	a.applyAndReply(w, req, "shipping_address", func() error {
		return a.svc.ApplyShippingAddress(req.Context(), p)
	})
}

func (a *API) applyAndReply(w http.ResponseWriter, req *http.Request, kind string, apply func() error) {
	if err := apply(); err != nil {
		if !errors.Is(err, reviews.ErrNotFound) && !errors.Is(err, reviews.ErrMissingParameter) {
			slog.Error("postback failed", "kind", kind, "error", err.Error())
		}
		writeRaw(w, http.StatusBadRequest, bodyBadResponse)
		return
	}
	writeRaw(w, http.StatusOK, bodySuccess)
}

type genericPostbackRequest struct {
	Entity  string                     `json:"entity"`
	APIKey  string                     `json:"api_key"`
	Payload reviews.PaymentLinkPayload `json:"payload"`
}

func (a *API) handleGeneric(w http.ResponseWriter, req *http.Request) {
	var p genericPostbackRequest
	if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, reviews.PostbackResult{
			Status: "failed",
			Error:  "missing_parameter",
		})
		return
	}

	res := a.svc.HandlePostback(req.Context(), p.Entity, p.APIKey, p.Payload)
	code := http.StatusOK
	if res.Status != "success" {
		code = http.StatusBadRequest
	}
	writeJSON(w, code, res)
}

func (a *API) handleGetReview(w http.ResponseWriter, req *http.Request) {
	ref := chi.URLParam(req, "orderRef")
	rec, err := a.svc.GetReview(req.Context(), ref)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handlePurge(w http.ResponseWriter, req *http.Request) {
	n, err := a.svc.PurgeAll(req.Context())
	if err != nil {
		slog.Error("purge failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "purge failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"purged": n})
}

func (a *API) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) handleReadyz(w http.ResponseWriter, req *http.Request) {
	if a.ready != nil {
		if err := a.ready(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeRaw(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
