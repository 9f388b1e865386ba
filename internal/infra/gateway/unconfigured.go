package gateway

import (
	"context"

	"zona-pedidos/internal/apperr"
)

// Unconfigured stands in for a provider whose secret is missing; every call
// fails with a configuration error naming the key.
type Unconfigured struct {
	Provider string
	Key      string
}

func (u Unconfigured) err() error { return apperr.ConfigMissing(u.Key) }

func (u Unconfigured) Name() string { return u.Provider }

func (u Unconfigured) CreateCustomer(context.Context, CustomerParams) (*Customer, error) {
	return nil, u.err()
}

func (u Unconfigured) GetCustomer(context.Context, string) (*Customer, error) {
	return nil, u.err()
}

func (u Unconfigured) UpdateCustomer(context.Context, string, CustomerParams) (*Customer, error) {
	return nil, u.err()
}

func (u Unconfigured) CreateSubscription(context.Context, CreateSubscriptionParams) (*Subscription, error) {
	return nil, u.err()
}

func (u Unconfigured) UpdateSubscription(context.Context, string, UpdateSubscriptionParams) (*Subscription, error) {
	return nil, u.err()
}

func (u Unconfigured) CancelSubscription(context.Context, string) error {
	return u.err()
}

func (u Unconfigured) ListSubscriptions(context.Context, string) ([]Subscription, error) {
	return nil, u.err()
}

func (u Unconfigured) ListPayments(context.Context, string) ([]Payment, error) {
	return nil, u.err()
}
