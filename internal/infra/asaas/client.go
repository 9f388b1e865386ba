// Package asaas adapts the Asaas REST API (v3) to the gateway contract.
package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"zona-pedidos/internal/infra/gateway"
	"zona-pedidos/internal/metrics"

	"golang.org/x/time/rate"
)

const (
	ProviderName = "asaas"
	dateLayout   = "2006-01-02"
	pageSize     = 100
)

type Options struct {
	BaseURL    string
	APIKey     string
	RateLimit  float64 // requests per second, <= 0 disables throttling
	Location   *time.Location
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	loc     *time.Location
}

func New(opts Options) *Client {
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http:    opts.HTTPClient,
		loc:     opts.Location,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 20 * time.Second}
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

func (c *Client) Name() string { return ProviderName }

type customerPayload struct {
	ID                string `json:"id,omitempty"`
	Name              string `json:"name"`
	Email             string `json:"email,omitempty"`
	CpfCnpj           string `json:"cpfCnpj,omitempty"`
	ExternalReference string `json:"externalReference,omitempty"`
}

type subscriptionPayload struct {
	ID                    string  `json:"id,omitempty"`
	Customer              string  `json:"customer,omitempty"`
	BillingType           string  `json:"billingType,omitempty"`
	Cycle                 string  `json:"cycle,omitempty"`
	Value                 float64 `json:"value,omitempty"`
	NextDueDate           string  `json:"nextDueDate,omitempty"`
	Description           string  `json:"description,omitempty"`
	ExternalReference     string  `json:"externalReference,omitempty"`
	Status                string  `json:"status,omitempty"`
	UpdatePendingPayments bool    `json:"updatePendingPayments,omitempty"`
}

type paymentPayload struct {
	ID           string  `json:"id"`
	Customer     string  `json:"customer"`
	Subscription string  `json:"subscription"`
	Status       string  `json:"status"`
	InvoiceURL   string  `json:"invoiceUrl"`
	DueDate      string  `json:"dueDate"`
	DateCreated  string  `json:"dateCreated"`
	Value        float64 `json:"value"`
}

type listResponse[T any] struct {
	Data       []T  `json:"data"`
	HasMore    bool `json:"hasMore"`
	TotalCount int  `json:"totalCount"`
}

type errorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

func (c *Client) CreateCustomer(ctx context.Context, params gateway.CustomerParams) (*gateway.Customer, error) {
	var out customerPayload
	in := customerPayload{
		Name:              params.Name,
		Email:             params.Email,
		CpfCnpj:           params.TaxID,
		ExternalReference: params.ExternalReference,
	}
	if err := c.do(ctx, "create_customer", http.MethodPost, "/customers", nil, in, &out); err != nil {
		return nil, err
	}
	return toCustomer(out), nil
}

func (c *Client) GetCustomer(ctx context.Context, id string) (*gateway.Customer, error) {
	var out customerPayload
	if err := c.do(ctx, "get_customer", http.MethodGet, "/customers/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return toCustomer(out), nil
}

func (c *Client) UpdateCustomer(ctx context.Context, id string, params gateway.CustomerParams) (*gateway.Customer, error) {
	var out customerPayload
	in := customerPayload{
		Name:              params.Name,
		Email:             params.Email,
		CpfCnpj:           params.TaxID,
		ExternalReference: params.ExternalReference,
	}
	if err := c.do(ctx, "update_customer", http.MethodPost, "/customers/"+url.PathEscape(id), nil, in, &out); err != nil {
		return nil, err
	}
	return toCustomer(out), nil
}

func (c *Client) CreateSubscription(ctx context.Context, params gateway.CreateSubscriptionParams) (*gateway.Subscription, error) {
	billingType := params.BillingType
	if billingType == "" {
		billingType = gateway.BillingTypeUndefined
	}
	in := subscriptionPayload{
		Customer:          params.CustomerID,
		BillingType:       billingType,
		Cycle:             params.Cycle,
		Value:             params.Value,
		NextDueDate:       params.NextDueDate.In(c.loc).Format(dateLayout),
		Description:       params.Description,
		ExternalReference: params.ExternalReference,
	}
	var out subscriptionPayload
	if err := c.do(ctx, "create_subscription", http.MethodPost, "/subscriptions", nil, in, &out); err != nil {
		return nil, err
	}
	return c.toSubscription(out), nil
}

func (c *Client) UpdateSubscription(ctx context.Context, id string, params gateway.UpdateSubscriptionParams) (*gateway.Subscription, error) {
	in := subscriptionPayload{
		Cycle:                 params.Cycle,
		Value:                 params.Value,
		UpdatePendingPayments: true,
	}
	var out subscriptionPayload
	if err := c.do(ctx, "update_subscription", http.MethodPost, "/subscriptions/"+url.PathEscape(id), nil, in, &out); err != nil {
		return nil, err
	}
	return c.toSubscription(out), nil
}

func (c *Client) CancelSubscription(ctx context.Context, id string) error {
	return c.do(ctx, "cancel_subscription", http.MethodDelete, "/subscriptions/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListSubscriptions(ctx context.Context, customerID string) ([]gateway.Subscription, error) {
	var subs []gateway.Subscription
	for offset := 0; ; offset += pageSize {
		q := url.Values{}
		q.Set("customer", customerID)
		q.Set("offset", fmt.Sprint(offset))
		q.Set("limit", fmt.Sprint(pageSize))

		var page listResponse[subscriptionPayload]
		if err := c.do(ctx, "list_subscriptions", http.MethodGet, "/subscriptions", q, nil, &page); err != nil {
			return nil, err
		}
		for _, s := range page.Data {
			subs = append(subs, *c.toSubscription(s))
		}
		if !page.HasMore || len(page.Data) == 0 {
			return subs, nil
		}
	}
}

func (c *Client) ListPayments(ctx context.Context, subscriptionID string) ([]gateway.Payment, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(pageSize))

	var page listResponse[paymentPayload]
	path := "/subscriptions/" + url.PathEscape(subscriptionID) + "/payments"
	if err := c.do(ctx, "list_payments", http.MethodGet, path, q, nil, &page); err != nil {
		return nil, err
	}

	payments := make([]gateway.Payment, 0, len(page.Data))
	for _, p := range page.Data {
		payments = append(payments, c.toPayment(p))
	}
	// Newest first by due date.
	sort.SliceStable(payments, func(i, j int) bool {
		return dueUnix(payments[i]) > dueUnix(payments[j])
	})
	return payments, nil
}

func dueUnix(p gateway.Payment) int64 {
	if p.DueDate == nil {
		return 0
	}
	return p.DueDate.Unix()
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.GatewayRequestDuration.WithLabelValues(ProviderName, op, result).Observe(time.Since(start).Seconds())
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &gateway.Error{Provider: ProviderName, Op: op, Err: err}
		}
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return &gateway.Error{Provider: ProviderName, Op: op, Err: err}
		}
		body = bytes.NewReader(buf)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return &gateway.Error{Provider: ProviderName, Op: op, Err: err}
	}
	req.Header.Set("access_token", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "zona-pedidos")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &gateway.Error{Provider: ProviderName, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &gateway.Error{Provider: ProviderName, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gerr := &gateway.Error{Provider: ProviderName, Op: op, StatusCode: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil {
			for _, e := range er.Errors {
				if e.Description != "" {
					gerr.Descriptions = append(gerr.Descriptions, e.Description)
				}
			}
		}
		if resp.StatusCode == http.StatusNotFound {
			gerr.Err = gateway.ErrNotFound
		} else {
			gerr.Err = errors.New(http.StatusText(resp.StatusCode))
		}
		return gerr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &gateway.Error{Provider: ProviderName, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func toCustomer(p customerPayload) *gateway.Customer {
	return &gateway.Customer{
		ID:                p.ID,
		Name:              p.Name,
		Email:             p.Email,
		TaxID:             p.CpfCnpj,
		ExternalReference: p.ExternalReference,
	}
}

func (c *Client) toSubscription(p subscriptionPayload) *gateway.Subscription {
	return &gateway.Subscription{
		ID:          p.ID,
		CustomerID:  p.Customer,
		Status:      strings.ToUpper(p.Status),
		Cycle:       strings.ToUpper(p.Cycle),
		Value:       p.Value,
		NextDueDate: parseDate(p.NextDueDate, c.loc),
	}
}

func (c *Client) toPayment(p paymentPayload) gateway.Payment {
	return gateway.Payment{
		ID:         p.ID,
		Status:     strings.ToUpper(p.Status),
		InvoiceURL: p.InvoiceURL,
		DueDate:    parseDate(p.DueDate, c.loc),
	}
}

func parseDate(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return nil
	}
	return &t
}
