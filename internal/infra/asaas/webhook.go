package asaas

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"zona-pedidos/internal/domain/billing"
	"zona-pedidos/internal/infra/gateway"
)

// TokenHeader carries the shared secret configured on the Asaas webhook.
const TokenHeader = "asaas-access-token"

type WebhookParser struct {
	token string
	loc   *time.Location
}

// NewWebhookParser builds a parser. An empty token disables authentication.
func NewWebhookParser(token string, loc *time.Location) *WebhookParser {
	if loc == nil {
		loc = time.UTC
	}
	return &WebhookParser{token: token, loc: loc}
}

func (p *WebhookParser) Provider() string { return ProviderName }

func (p *WebhookParser) Verify(header http.Header, _ []byte) error {
	if p.token == "" {
		return nil
	}
	got := header.Get(TokenHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(p.token)) != 1 {
		return gateway.ErrUnauthenticWebhook
	}
	return nil
}

type webhookPayload struct {
	ID           string               `json:"id"`
	Event        string               `json:"event"`
	Payment      *paymentPayload      `json:"payment"`
	Subscription *subscriptionPayload `json:"subscription"`
}

func (p *WebhookParser) Decode(body []byte) (billing.Event, error) {
	var w webhookPayload
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrMalformedWebhook, err)
	}
	name := billing.EventName(strings.ToUpper(strings.TrimSpace(w.Event)))
	if name == "" {
		return nil, fmt.Errorf("%w: missing event name", gateway.ErrMalformedWebhook)
	}

	switch name {
	case billing.EventPaymentReceived,
		billing.EventPaymentConfirmed,
		billing.EventPaymentOverdue,
		billing.EventPaymentDeleted,
		billing.EventPaymentRefunded:
		if w.Payment != nil {
			return billing.PaymentEvent{
				EventID: w.ID,
				Event:   name,
				Payment: billing.Payment{
					ID:             w.Payment.ID,
					CustomerID:     w.Payment.Customer,
					SubscriptionID: w.Payment.Subscription,
					Status:         strings.ToUpper(w.Payment.Status),
					InvoiceURL:     w.Payment.InvoiceURL,
					DueDate:        parseDate(w.Payment.DueDate, p.loc),
				},
			}, nil
		}

	case billing.EventSubscriptionCreated,
		billing.EventSubscriptionUpdated,
		billing.EventSubscriptionInactivated,
		billing.EventSubscriptionDeleted:
		if w.Subscription != nil {
			return billing.SubscriptionEvent{
				EventID: w.ID,
				Event:   name,
				Subscription: billing.Subscription{
					ID:          w.Subscription.ID,
					CustomerID:  w.Subscription.Customer,
					Status:      strings.ToUpper(w.Subscription.Status),
					Cycle:       strings.ToUpper(w.Subscription.Cycle),
					NextDueDate: parseDate(w.Subscription.NextDueDate, p.loc),
				},
			}, nil
		}
	}

	unknown := billing.UnknownEvent{EventID: w.ID, Event: name}
	switch {
	case w.Payment != nil:
		unknown.Customer = w.Payment.Customer
		unknown.Subscription = w.Payment.Subscription
	case w.Subscription != nil:
		unknown.Customer = w.Subscription.Customer
		unknown.Subscription = w.Subscription.ID
	}
	return unknown, nil
}
