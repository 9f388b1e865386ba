package billing

import (
	"context"
	"fmt"
	"sync"

	"zona-pedidos/internal/infra/gateway"
)

type fakeGateway struct {
	mu sync.Mutex

	customers map[string]*gateway.Customer
	subs      map[string][]gateway.Subscription // by customer id
	payments  map[string][]gateway.Payment      // by subscription id

	createdSubs []gateway.CreateSubscriptionParams
	updates     []gateway.UpdateSubscriptionParams
	cancelled   []string
	calls       []string
	nextID      int

	cancelErr     error
	createSubErr  error
	listSubsErrOn map[string]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		customers:     map[string]*gateway.Customer{},
		subs:          map[string][]gateway.Subscription{},
		payments:      map[string][]gateway.Payment{},
		listSubsErrOn: map[string]error{},
	}
}

func (f *fakeGateway) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeGateway) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s_%d", prefix, f.nextID)
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) CreateCustomer(_ context.Context, p gateway.CustomerParams) (*gateway.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create_customer")
	c := &gateway.Customer{ID: f.id("cus"), Name: p.Name, Email: p.Email, TaxID: p.TaxID, ExternalReference: p.ExternalReference}
	f.customers[c.ID] = c
	return c, nil
}

func (f *fakeGateway) GetCustomer(_ context.Context, id string) (*gateway.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get_customer")
	c, ok := f.customers[id]
	if !ok {
		return nil, &gateway.Error{Provider: "fake", Op: "get_customer", StatusCode: 404, Err: gateway.ErrNotFound}
	}
	return c, nil
}

func (f *fakeGateway) UpdateCustomer(_ context.Context, id string, p gateway.CustomerParams) (*gateway.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update_customer")
	c, ok := f.customers[id]
	if !ok {
		return nil, &gateway.Error{Provider: "fake", Op: "update_customer", StatusCode: 404, Err: gateway.ErrNotFound}
	}
	c.TaxID = p.TaxID
	return c, nil
}

func (f *fakeGateway) CreateSubscription(_ context.Context, p gateway.CreateSubscriptionParams) (*gateway.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create_subscription")
	if f.createSubErr != nil {
		return nil, f.createSubErr
	}
	f.createdSubs = append(f.createdSubs, p)
	due := p.NextDueDate
	s := gateway.Subscription{ID: f.id("sub"), CustomerID: p.CustomerID, Status: "ACTIVE", Cycle: p.Cycle, Value: p.Value, NextDueDate: &due}
	f.subs[p.CustomerID] = append(f.subs[p.CustomerID], s)
	f.payments[s.ID] = []gateway.Payment{{ID: f.id("pay"), Status: "PENDING", InvoiceURL: "https://pay.example/i/" + s.ID, DueDate: &due}}
	return &s, nil
}

func (f *fakeGateway) UpdateSubscription(_ context.Context, id string, p gateway.UpdateSubscriptionParams) (*gateway.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update_subscription")
	f.updates = append(f.updates, p)
	return &gateway.Subscription{ID: id, Status: "ACTIVE", Cycle: p.Cycle, Value: p.Value}, nil
}

func (f *fakeGateway) CancelSubscription(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("cancel_subscription")
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeGateway) ListSubscriptions(_ context.Context, customerID string) ([]gateway.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list_subscriptions")
	if err := f.listSubsErrOn[customerID]; err != nil {
		return nil, err
	}
	return append([]gateway.Subscription(nil), f.subs[customerID]...), nil
}

func (f *fakeGateway) ListPayments(_ context.Context, subscriptionID string) ([]gateway.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list_payments")
	return append([]gateway.Payment(nil), f.payments[subscriptionID]...), nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
