package riskwatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const apiKeyHeader = "X-Riskwatch-Api-Key"

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.riskwatch.io"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

// Адреса: address с биллинга или доставки заказчика.
// Имена полей (с подчёркиванием) — формат антифрод-сервиса, не менять.
type Address struct {
	Name     string `json:"_name"`
	Address1 string `json:"_address1"`
	Address2 string `json:"_address2"`
	City     string `json:"_city"`
	Country  string `json:"_country"`
	Region   string `json:"_region"`
	Zipcode  string `json:"_zipcode"`
	Phone    string `json:"_phone"`
}

type Item struct {
	Price        string `json:"_price"`
	Quantity     int    `json:"_quantity"`
	ProductTitle string `json:"_product_title"`
	ItemID       string `json:"_item_id"`
	CurrencyCode string `json:"_currency_code"`
	Country      string `json:"_country"`
}

type PaymentMethod struct {
	PaymentType    string `json:"_payment_type"`
	Amount         string `json:"_amount"`
	CurrencyCode   string `json:"_currency_code"`
	PaymentGateway string `json:"_payment_gateway"`
	AccountName    string `json:"_accountName"`
}

type Order struct {
	UserID          string          `json:"_user_id,omitempty"`
	SessionID       string          `json:"_session_id,omitempty"`
	DeviceIP        string          `json:"_device_ip"`
	OriginTimestamp string          `json:"_origin_timestamp"`
	OrderID         string          `json:"_order_id"`
	UserEmail       string          `json:"_user_email"`
	Amount          string          `json:"_amount"`
	CurrencyCode    string          `json:"_currency_code"`
	IsPrePaid       bool            `json:"_is_pre_paid"`
	BillingAddress  *Address        `json:"_billing_address,omitempty"`
	ShippingAddress *Address        `json:"_shipping_address,omitempty"`
	Items           []Item          `json:"_items,omitempty"`
	PaymentMethods  []PaymentMethod `json:"_payment_methods,omitempty"`
	CustomInfo      map[string]string `json:"_custom_info,omitempty"`
}

type Transaction struct {
	Order

	PaymentMethod     *PaymentMethod `json:"_payment_method,omitempty"`
	TransactionID     string         `json:"_transaction_id"`
	TransactionType   string         `json:"_transaction_type"`
	TransactionStatus string         `json:"_transaction_status"`
}

type Account struct {
	UserID          string `json:"_user_id"`
	SessionID       string `json:"_session_id,omitempty"`
	DeviceIP        string `json:"_device_ip,omitempty"`
	OriginTimestamp string `json:"_origin_timestamp,omitempty"`
	UserEmail       string `json:"_user_email,omitempty"`
	AccountStatus   string `json:"_account_status,omitempty"`
	LoginStatus     string `json:"_login_status,omitempty"`
}

type OrderStatus struct {
	OrderID     string `json:"_order_id"`
	OrderStatus string `json:"_order_status"`
}

// ClientAction — подписанное уведомление о действии, принятом на стороне
// клиента (эхо смены локального статуса). Secret = общий API-ключ.
type ClientAction struct {
	Secret         string `json:"secret"`
	OrderID        string `json:"order_id"`
	OrderTimestamp string `json:"order_timestamp"`
	ActionType     string `json:"action_type"`
	Message        string `json:"message"`
}

// PostbackRegistration — единовременная регистрация вебхук-адресов.
type PostbackRegistration struct {
	ScorePostback           string `json:"score_postback"`
	ActionPostback          string `json:"action_postback"`
	ShippingAddressPostback string `json:"shipping_address_postback"`
	URL                     string `json:"url"`
	Secret                  string `json:"secret"`
}

func (c *Client) CreateOrder(ctx context.Context, o Order) error {
	return c.post(ctx, "/v1/createorder", o, true)
}

func (c *Client) Transaction(ctx context.Context, t Transaction) error {
	return c.post(ctx, "/v1/transaction", t, true)
}

func (c *Client) OrderStatus(ctx context.Context, st OrderStatus) error {
	return c.post(ctx, "/v1/orderstatus", st, true)
}

func (c *Client) CreateAccount(ctx context.Context, a Account) error {
	return c.post(ctx, "/v1/createaccount", a, true)
}

func (c *Client) Login(ctx context.Context, a Account) error {
	return c.post(ctx, "/v1/login", a, true)
}

func (c *Client) LinkSessionToUser(ctx context.Context, a Account) error {
	return c.post(ctx, "/v1/linksessiontouser", a, true)
}

func (c *Client) ClientAction(ctx context.Context, a ClientAction) error {
	// Подпись лежит в теле, заголовок с ключом не нужен.
	return c.post(ctx, "/v1/clientaction", a, false)
}

func (c *Client) RegisterPostbackURLs(ctx context.Context, reg PostbackRegistration) error {
	return c.post(ctx, "/v1/addpostbackurl", reg, false)
}

func (c *Client) post(ctx context.Context, path string, body any, withKey bool) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u.Path = u.Path + path

	b, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if withKey {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("riskwatch %s http %d", path, resp.StatusCode)
	}
	return nil
}
