package billing

import "time"

// EventName is the gateway-neutral event vocabulary. Provider adapters
// translate their own callbacks onto it.
type EventName string

const (
	EventPaymentReceived         EventName = "PAYMENT_RECEIVED"
	EventPaymentConfirmed        EventName = "PAYMENT_CONFIRMED"
	EventPaymentOverdue          EventName = "PAYMENT_OVERDUE"
	EventPaymentDeleted          EventName = "PAYMENT_DELETED"
	EventPaymentRefunded         EventName = "PAYMENT_REFUNDED"
	EventSubscriptionCreated     EventName = "SUBSCRIPTION_CREATED"
	EventSubscriptionUpdated     EventName = "SUBSCRIPTION_UPDATED"
	EventSubscriptionInactivated EventName = "SUBSCRIPTION_INACTIVATED"
	EventSubscriptionDeleted     EventName = "SUBSCRIPTION_DELETED"
)

// Event is one parsed gateway callback. Implementations are PaymentEvent,
// SubscriptionEvent and UnknownEvent.
type Event interface {
	Name() EventName
	ID() string
	CustomerID() string
	SubscriptionID() string
}

type Payment struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	Status         string
	InvoiceURL     string
	DueDate        *time.Time
}

type Subscription struct {
	ID          string
	CustomerID  string
	Status      string // gateway vocabulary, upper-cased
	Cycle       string
	NextDueDate *time.Time
}

type PaymentEvent struct {
	EventID string
	Event   EventName
	Payment Payment
}

func (e PaymentEvent) Name() EventName        { return e.Event }
func (e PaymentEvent) ID() string             { return e.EventID }
func (e PaymentEvent) CustomerID() string     { return e.Payment.CustomerID }
func (e PaymentEvent) SubscriptionID() string { return e.Payment.SubscriptionID }

type SubscriptionEvent struct {
	EventID      string
	Event        EventName
	Subscription Subscription
}

func (e SubscriptionEvent) Name() EventName        { return e.Event }
func (e SubscriptionEvent) ID() string             { return e.EventID }
func (e SubscriptionEvent) CustomerID() string     { return e.Subscription.CustomerID }
func (e SubscriptionEvent) SubscriptionID() string { return e.Subscription.ID }

// UnknownEvent carries events outside the mapping table; they are acknowledged
// and recorded but never change state.
type UnknownEvent struct {
	EventID      string
	Event        EventName
	Customer     string
	Subscription string
}

func (e UnknownEvent) Name() EventName        { return e.Event }
func (e UnknownEvent) ID() string             { return e.EventID }
func (e UnknownEvent) CustomerID() string     { return e.Customer }
func (e UnknownEvent) SubscriptionID() string { return e.Subscription }
