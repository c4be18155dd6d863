package wochttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/BearBump/RiskSync/internal/hosting"
	"github.com/pkg/errors"
)

// Client ходит в REST API хост-платформы (магазина) за заказами, заметками
// и купонами. Токен передаётся Bearer-заголовком.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8090"
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type orderDoc struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Status string `json:"status"`

	Currency     string `json:"currency"`
	Total        string `json:"total"`
	CustomerNote string `json:"customer_note"`

	PaymentMethod      string `json:"payment_method"`
	PaymentMethodTitle string `json:"payment_method_title"`

	BillingEmail string     `json:"billing_email"`
	Billing      addressDoc `json:"billing"`
	Shipping     addressDoc `json:"shipping"`

	CustomerID string `json:"customer_id"`
	SessionID  string `json:"session_id"`
	DeviceIP   string `json:"device_ip"`

	Items []lineItemDoc `json:"line_items"`

	DateCreated time.Time `json:"date_created"`
}

type addressDoc struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

type lineItemDoc struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Total     string `json:"total"`
}

func (c *Client) GetOrder(ctx context.Context, id string) (*hosting.Order, error) {
	resp, err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("host api get order http %d", resp.StatusCode)
	}

	var d orderDoc
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	return fromDoc(&d), nil
}

func (c *Client) SaveOrder(ctx context.Context, o *hosting.Order) error {
	return c.expect2xx(ctx, http.MethodPut, "/orders/"+url.PathEscape(o.ID), toDoc(o), "save order")
}

func (c *Client) UpdateStatus(ctx context.Context, orderID, status, note string) error {
	body := map[string]string{"status": status, "note": note}
	return c.expect2xx(ctx, http.MethodPut, "/orders/"+url.PathEscape(orderID)+"/status", body, "update status")
}

func (c *Client) AddOrderNote(ctx context.Context, orderID, note string) error {
	body := map[string]string{"note": note}
	return c.expect2xx(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/notes", body, "add order note")
}

func (c *Client) CreateCoupon(ctx context.Context, code, amount string) (string, error) {
	body := map[string]string{"code": code, "amount": amount, "discount_type": "fixed_cart"}
	resp, err := c.do(ctx, http.MethodPost, "/coupons", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("host api create coupon http %d", resp.StatusCode)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode coupon")
	}
	return out.ID, nil
}

func (c *Client) ApplyCoupon(ctx context.Context, orderID, code string) error {
	body := map[string]string{"code": code}
	return c.expect2xx(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/coupons", body, "apply coupon")
}

func (c *Client) DeleteCoupon(ctx context.Context, couponID string) error {
	return c.expect2xx(ctx, http.MethodDelete, "/coupons/"+url.PathEscape(couponID), nil, "delete coupon")
}

func (c *Client) expect2xx(ctx context.Context, method, path string, body any, op string) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("host api %s http %d", op, resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.Path = u.Path + path

	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "marshal body")
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	return resp, nil
}

func fromDoc(d *orderDoc) *hosting.Order {
	o := &hosting.Order{
		ID:                 d.ID,
		Number:             d.Number,
		Status:             d.Status,
		Currency:           d.Currency,
		Total:              d.Total,
		CustomerNote:       d.CustomerNote,
		PaymentMethod:      d.PaymentMethod,
		PaymentMethodTitle: d.PaymentMethodTitle,
		BillingEmail:       d.BillingEmail,
		Billing:            hosting.Address(d.Billing),
		Shipping:           hosting.Address(d.Shipping),
		CustomerID:         d.CustomerID,
		SessionID:          d.SessionID,
		DeviceIP:           d.DeviceIP,
		DateCreated:        d.DateCreated,
	}
	for _, it := range d.Items {
		o.Items = append(o.Items, hosting.LineItem(it))
	}
	return o
}

func toDoc(o *hosting.Order) *orderDoc {
	d := &orderDoc{
		ID:                 o.ID,
		Number:             o.Number,
		Status:             o.Status,
		Currency:           o.Currency,
		Total:              o.Total,
		CustomerNote:       o.CustomerNote,
		PaymentMethod:      o.PaymentMethod,
		PaymentMethodTitle: o.PaymentMethodTitle,
		BillingEmail:       o.BillingEmail,
		Billing:            addressDoc(o.Billing),
		Shipping:           addressDoc(o.Shipping),
		CustomerID:         o.CustomerID,
		SessionID:          o.SessionID,
		DeviceIP:           o.DeviceIP,
		DateCreated:        o.DateCreated,
	}
	for _, it := range o.Items {
		d.Items = append(d.Items, lineItemDoc(it))
	}
	return d
}
