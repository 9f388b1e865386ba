package stripe

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"zona-pedidos/internal/domain/billing"
	"zona-pedidos/internal/infra/gateway"

	stripeapi "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

const SignatureHeader = "Stripe-Signature"

var eventNames = map[stripeapi.EventType]billing.EventName{
	"invoice.paid":                  billing.EventPaymentReceived,
	"invoice.payment_succeeded":     billing.EventPaymentConfirmed,
	"invoice.payment_failed":        billing.EventPaymentOverdue,
	"invoice.voided":                billing.EventPaymentDeleted,
	"invoice.deleted":               billing.EventPaymentDeleted,
	"charge.refunded":               billing.EventPaymentRefunded,
	"customer.subscription.created": billing.EventSubscriptionCreated,
	"customer.subscription.updated": billing.EventSubscriptionUpdated,
	"customer.subscription.paused":  billing.EventSubscriptionInactivated,
	"customer.subscription.deleted": billing.EventSubscriptionDeleted,
}

type WebhookParser struct {
	secret string
}

// NewWebhookParser builds a parser. An empty secret disables signature checks.
func NewWebhookParser(secret string) *WebhookParser {
	return &WebhookParser{secret: secret}
}

func (p *WebhookParser) Provider() string { return ProviderName }

func (p *WebhookParser) Verify(header http.Header, body []byte) error {
	if p.secret == "" {
		return nil
	}
	_, err := webhook.ConstructEventWithOptions(body, header.Get(SignatureHeader), p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrUnauthenticWebhook, err)
	}
	return nil
}

func (p *WebhookParser) Decode(body []byte) (billing.Event, error) {
	var evt stripeapi.Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrMalformedWebhook, err)
	}
	if evt.Type == "" || evt.Data == nil {
		return nil, fmt.Errorf("%w: missing type or data", gateway.ErrMalformedWebhook)
	}

	name, known := eventNames[evt.Type]
	if !known {
		return unknownEvent(evt), nil
	}

	switch name {
	case billing.EventPaymentRefunded:
		var ch stripeapi.Charge
		if err := json.Unmarshal(evt.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("%w: %v", gateway.ErrMalformedWebhook, err)
		}
		pay := billing.Payment{ID: ch.ID, Status: "REFUNDED"}
		if ch.Customer != nil {
			pay.CustomerID = ch.Customer.ID
		}
		if ch.Invoice != nil {
			pay.ID = ch.Invoice.ID
			if ch.Invoice.Subscription != nil {
				pay.SubscriptionID = ch.Invoice.Subscription.ID
			}
		}
		return billing.PaymentEvent{EventID: evt.ID, Event: name, Payment: pay}, nil

	case billing.EventPaymentReceived, billing.EventPaymentConfirmed,
		billing.EventPaymentOverdue, billing.EventPaymentDeleted:
		var inv stripeapi.Invoice
		if err := json.Unmarshal(evt.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%w: %v", gateway.ErrMalformedWebhook, err)
		}
		pay := billing.Payment{
			ID:         inv.ID,
			Status:     strings.ToUpper(string(inv.Status)),
			InvoiceURL: inv.HostedInvoiceURL,
			DueDate:    invoiceDue(&inv),
		}
		if inv.Customer != nil {
			pay.CustomerID = inv.Customer.ID
		}
		if inv.Subscription != nil {
			pay.SubscriptionID = inv.Subscription.ID
		}
		return billing.PaymentEvent{EventID: evt.ID, Event: name, Payment: pay}, nil

	default:
		var sub stripeapi.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: %v", gateway.ErrMalformedWebhook, err)
		}
		gs := toSubscription(&sub)
		return billing.SubscriptionEvent{
			EventID: evt.ID,
			Event:   name,
			Subscription: billing.Subscription{
				ID:          gs.ID,
				CustomerID:  gs.CustomerID,
				Status:      gs.Status,
				Cycle:       gs.Cycle,
				NextDueDate: gs.NextDueDate,
			},
		}, nil
	}
}

// unknownEvent keeps whatever customer and subscription ids the object exposes.
func unknownEvent(evt stripeapi.Event) billing.UnknownEvent {
	out := billing.UnknownEvent{EventID: evt.ID, Event: billing.EventName(evt.Type)}
	var obj struct {
		Customer     json.RawMessage `json:"customer"`
		Subscription json.RawMessage `json:"subscription"`
	}
	if err := json.Unmarshal(evt.Data.Raw, &obj); err == nil {
		out.Customer = expandableID(obj.Customer)
		out.Subscription = expandableID(obj.Subscription)
	}
	return out
}

// expandableID reads a Stripe field that is either an id string or an expanded object.
func expandableID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}
