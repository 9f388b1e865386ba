// Package stripe adapts Stripe Billing to the gateway contract. Cycles map to
// preconfigured recurring prices; the requested value is informational only.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zona-pedidos/internal/domain/billing"
	"zona-pedidos/internal/infra/gateway"
	"zona-pedidos/internal/metrics"

	stripeapi "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
)

const (
	ProviderName = "stripe"
	taxIDKey     = "tax_id"
	tenantIDKey  = "tenant_id"
)

type Provider struct {
	api    *client.API
	prices map[string]string // cycle -> price id
	now    func() time.Time
}

func New(secretKey, monthlyPriceID, yearlyPriceID string) *Provider {
	return &Provider{
		api: client.New(secretKey, nil),
		prices: map[string]string{
			billing.PlanMonthly: monthlyPriceID,
			billing.PlanYearly:  yearlyPriceID,
		},
		now: time.Now,
	}
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) CreateCustomer(ctx context.Context, params gateway.CustomerParams) (cus *gateway.Customer, err error) {
	defer observe("create_customer", time.Now(), &err)

	cp := &stripeapi.CustomerParams{
		Name:  stripeapi.String(params.Name),
		Email: stripeapi.String(params.Email),
	}
	cp.Context = ctx
	cp.AddMetadata(taxIDKey, params.TaxID)
	cp.AddMetadata(tenantIDKey, params.ExternalReference)

	c, err := p.api.Customers.New(cp)
	if err != nil {
		return nil, wrapErr("create_customer", err)
	}
	return toCustomer(c), nil
}

func (p *Provider) GetCustomer(ctx context.Context, id string) (cus *gateway.Customer, err error) {
	defer observe("get_customer", time.Now(), &err)

	cp := &stripeapi.CustomerParams{}
	cp.Context = ctx
	c, err := p.api.Customers.Get(id, cp)
	if err != nil {
		return nil, wrapErr("get_customer", err)
	}
	return toCustomer(c), nil
}

func (p *Provider) UpdateCustomer(ctx context.Context, id string, params gateway.CustomerParams) (cus *gateway.Customer, err error) {
	defer observe("update_customer", time.Now(), &err)

	cp := &stripeapi.CustomerParams{}
	cp.Context = ctx
	if params.Name != "" {
		cp.Name = stripeapi.String(params.Name)
	}
	if params.Email != "" {
		cp.Email = stripeapi.String(params.Email)
	}
	if params.TaxID != "" {
		cp.AddMetadata(taxIDKey, params.TaxID)
	}
	c, err := p.api.Customers.Update(id, cp)
	if err != nil {
		return nil, wrapErr("update_customer", err)
	}
	return toCustomer(c), nil
}

func (p *Provider) CreateSubscription(ctx context.Context, params gateway.CreateSubscriptionParams) (sub *gateway.Subscription, err error) {
	defer observe("create_subscription", time.Now(), &err)

	priceID, err := p.priceFor(params.Cycle)
	if err != nil {
		return nil, err
	}

	sp := &stripeapi.SubscriptionParams{
		Customer: stripeapi.String(params.CustomerID),
		Items: []*stripeapi.SubscriptionItemsParams{
			{Price: stripeapi.String(priceID), Quantity: stripeapi.Int64(1)},
		},
		PaymentBehavior: stripeapi.String("default_incomplete"),
	}
	sp.Context = ctx
	if params.Description != "" {
		sp.Description = stripeapi.String(params.Description)
	}
	sp.AddMetadata(tenantIDKey, params.ExternalReference)

	// A first due date in the future becomes a Stripe trial.
	if params.NextDueDate.After(p.now().Add(time.Hour)) {
		sp.TrialEnd = stripeapi.Int64(params.NextDueDate.Unix())
	}

	s, err := p.api.Subscriptions.New(sp)
	if err != nil {
		return nil, wrapErr("create_subscription", err)
	}
	return toSubscription(s), nil
}

func (p *Provider) UpdateSubscription(ctx context.Context, id string, params gateway.UpdateSubscriptionParams) (sub *gateway.Subscription, err error) {
	defer observe("update_subscription", time.Now(), &err)

	priceID, err := p.priceFor(params.Cycle)
	if err != nil {
		return nil, err
	}

	gp := &stripeapi.SubscriptionParams{}
	gp.Context = ctx
	current, err := p.api.Subscriptions.Get(id, gp)
	if err != nil {
		return nil, wrapErr("update_subscription", err)
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return nil, &gateway.Error{Provider: ProviderName, Op: "update_subscription", Err: errors.New("subscription has no price item")}
	}

	up := &stripeapi.SubscriptionParams{
		Items: []*stripeapi.SubscriptionItemsParams{
			{ID: stripeapi.String(current.Items.Data[0].ID), Price: stripeapi.String(priceID)},
		},
		ProrationBehavior: stripeapi.String("create_prorations"),
	}
	up.Context = ctx
	s, err := p.api.Subscriptions.Update(id, up)
	if err != nil {
		return nil, wrapErr("update_subscription", err)
	}
	return toSubscription(s), nil
}

func (p *Provider) CancelSubscription(ctx context.Context, id string) (err error) {
	defer observe("cancel_subscription", time.Now(), &err)

	cp := &stripeapi.SubscriptionCancelParams{}
	cp.Context = ctx
	if _, err := p.api.Subscriptions.Cancel(id, cp); err != nil {
		return wrapErr("cancel_subscription", err)
	}
	return nil
}

func (p *Provider) ListSubscriptions(ctx context.Context, customerID string) (subs []gateway.Subscription, err error) {
	defer observe("list_subscriptions", time.Now(), &err)

	lp := &stripeapi.SubscriptionListParams{
		Customer: stripeapi.String(customerID),
		Status:   stripeapi.String("all"),
	}
	lp.Context = ctx

	it := p.api.Subscriptions.List(lp)
	for it.Next() {
		subs = append(subs, *toSubscription(it.Subscription()))
	}
	if err := it.Err(); err != nil {
		return nil, wrapErr("list_subscriptions", err)
	}
	return subs, nil
}

// ListPayments returns the subscription's invoices; Stripe lists newest first.
func (p *Provider) ListPayments(ctx context.Context, subscriptionID string) (payments []gateway.Payment, err error) {
	defer observe("list_payments", time.Now(), &err)

	lp := &stripeapi.InvoiceListParams{
		Subscription: stripeapi.String(subscriptionID),
	}
	lp.Context = ctx

	it := p.api.Invoices.List(lp)
	for it.Next() {
		inv := it.Invoice()
		payments = append(payments, gateway.Payment{
			ID:         inv.ID,
			Status:     string(inv.Status),
			InvoiceURL: inv.HostedInvoiceURL,
			DueDate:    invoiceDue(inv),
		})
	}
	if err := it.Err(); err != nil {
		return nil, wrapErr("list_payments", err)
	}
	return payments, nil
}

func (p *Provider) priceFor(cycle string) (string, error) {
	priceID := p.prices[cycle]
	if priceID == "" {
		return "", &gateway.Error{Provider: ProviderName, Op: "price_lookup", Err: fmt.Errorf("no price configured for cycle %q", cycle)}
	}
	return priceID, nil
}

func toCustomer(c *stripeapi.Customer) *gateway.Customer {
	return &gateway.Customer{
		ID:                c.ID,
		Name:              c.Name,
		Email:             c.Email,
		TaxID:             c.Metadata[taxIDKey],
		ExternalReference: c.Metadata[tenantIDKey],
	}
}

func toSubscription(s *stripeapi.Subscription) *gateway.Subscription {
	out := &gateway.Subscription{
		ID:     s.ID,
		Status: normalizeStatus(s.Status),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.CurrentPeriodEnd > 0 {
		t := time.Unix(s.CurrentPeriodEnd, 0)
		out.NextDueDate = &t
	}
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0].Price != nil {
		price := s.Items.Data[0].Price
		out.Value = float64(price.UnitAmount) / 100.0
		if price.Recurring != nil {
			out.Cycle = cycleFromInterval(price.Recurring.Interval)
		}
	}
	return out
}

func invoiceDue(inv *stripeapi.Invoice) *time.Time {
	if inv.Lines != nil && len(inv.Lines.Data) > 0 && inv.Lines.Data[0].Period != nil && inv.Lines.Data[0].Period.End > 0 {
		t := time.Unix(inv.Lines.Data[0].Period.End, 0)
		return &t
	}
	if inv.DueDate > 0 {
		t := time.Unix(inv.DueDate, 0)
		return &t
	}
	return nil
}

func wrapErr(op string, err error) error {
	gerr := &gateway.Error{Provider: ProviderName, Op: op, Err: err}
	var serr *stripeapi.Error
	if errors.As(err, &serr) {
		gerr.StatusCode = serr.HTTPStatusCode
		if serr.Msg != "" {
			gerr.Descriptions = []string{serr.Msg}
		}
		if serr.HTTPStatusCode == 404 {
			gerr.Err = fmt.Errorf("%w: %v", gateway.ErrNotFound, err)
		}
	}
	return gerr
}

func observe(op string, start time.Time, err *error) {
	result := "ok"
	if *err != nil {
		result = "error"
	}
	metrics.GatewayRequestDuration.WithLabelValues(ProviderName, op, result).Observe(time.Since(start).Seconds())
}
