// Package gateway is the contract the billing core expects from a payment
// provider. Adapters live in sibling packages (asaas, stripe).
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"zona-pedidos/internal/domain/billing"
)

const (
	BillingTypeUndefined = "UNDEFINED" // payer picks boleto, pix or card on the invoice page
)

type Customer struct {
	ID                string
	Name              string
	Email             string
	TaxID             string
	ExternalReference string
}

type CustomerParams struct {
	Name              string
	Email             string
	TaxID             string
	ExternalReference string
}

type Subscription struct {
	ID          string
	CustomerID  string
	Status      string // provider vocabulary, upper-cased
	Cycle       string // MONTHLY | YEARLY
	Value       float64
	NextDueDate *time.Time
}

type CreateSubscriptionParams struct {
	CustomerID        string
	BillingType       string
	Cycle             string
	Value             float64
	NextDueDate       time.Time
	Description       string
	ExternalReference string
}

type UpdateSubscriptionParams struct {
	Cycle string
	Value float64
}

type Payment struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	InvoiceURL string     `json:"invoice_url,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
}

// Gateway is the subset of the provider API the billing core uses.
type Gateway interface {
	Name() string
	CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	UpdateCustomer(ctx context.Context, id string, params CustomerParams) (*Customer, error)
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)
	UpdateSubscription(ctx context.Context, id string, params UpdateSubscriptionParams) (*Subscription, error)
	CancelSubscription(ctx context.Context, id string) error
	ListSubscriptions(ctx context.Context, customerID string) ([]Subscription, error)
	// ListPayments returns the subscription's payments, newest first.
	ListPayments(ctx context.Context, subscriptionID string) ([]Payment, error)
}

// WebhookParser authenticates and decodes provider callbacks.
type WebhookParser interface {
	Provider() string
	// Verify checks the callback's authenticity. Returns ErrUnauthenticWebhook on mismatch.
	Verify(header http.Header, body []byte) error
	// Decode parses a payload into a typed event. Returns ErrMalformedWebhook
	// when the payload is not a syntactically valid event.
	Decode(body []byte) (billing.Event, error)
}

var (
	ErrUnauthenticWebhook = errors.New("webhook authentication failed")
	ErrMalformedWebhook   = errors.New("malformed webhook payload")
	ErrNotFound           = errors.New("gateway resource not found")
)

// Error is a non-2xx answer (or transport failure) from the provider.
type Error struct {
	Provider     string
	Op           string
	StatusCode   int
	Descriptions []string
	Err          error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Provider, e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if len(e.Descriptions) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Descriptions, "; "))
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}
