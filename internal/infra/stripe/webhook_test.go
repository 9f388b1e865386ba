package stripe

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"zona-pedidos/internal/domain/billing"
	"zona-pedidos/internal/infra/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75/webhook"
)

const testSecret = "whsec_test"

func signedHeader(payload []byte, secret string) http.Header {
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, secret)
	h := http.Header{}
	h.Set(SignatureHeader, fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig)))
	return h
}

const invoicePaid = `{
  "id": "evt_1",
  "object": "event",
  "api_version": "2020-08-27",
  "type": "invoice.paid",
  "data": {"object": {
    "id": "in_1",
    "object": "invoice",
    "customer": "cus_1",
    "subscription": "sub_1",
    "status": "paid",
    "hosted_invoice_url": "https://invoice.stripe.com/i/1",
    "lines": {"object": "list", "data": [
      {"id": "il_1", "object": "line_item", "period": {"start": 1740000000, "end": 1742592000}}
    ]}
  }}
}`

func TestVerifySignature(t *testing.T) {
	p := NewWebhookParser(testSecret)
	body := []byte(invoicePaid)

	assert.NoError(t, p.Verify(signedHeader(body, testSecret), body))
	assert.ErrorIs(t, p.Verify(signedHeader(body, "whsec_other"), body), gateway.ErrUnauthenticWebhook)
	assert.ErrorIs(t, p.Verify(http.Header{}, body), gateway.ErrUnauthenticWebhook)
}

func TestDecodeInvoicePaid(t *testing.T) {
	ev, err := NewWebhookParser(testSecret).Decode([]byte(invoicePaid))
	require.NoError(t, err)

	pe, ok := ev.(billing.PaymentEvent)
	require.True(t, ok)
	assert.Equal(t, billing.EventPaymentReceived, pe.Name())
	assert.Equal(t, "evt_1", pe.ID())
	assert.Equal(t, "cus_1", pe.CustomerID())
	assert.Equal(t, "sub_1", pe.SubscriptionID())
	assert.Equal(t, "PAID", pe.Payment.Status)
	assert.Equal(t, "https://invoice.stripe.com/i/1", pe.Payment.InvoiceURL)
	require.NotNil(t, pe.Payment.DueDate)
	assert.Equal(t, int64(1742592000), pe.Payment.DueDate.Unix())
}

func TestDecodeSubscriptionUpdated(t *testing.T) {
	body := []byte(`{
	  "id": "evt_2",
	  "object": "event",
	  "type": "customer.subscription.updated",
	  "data": {"object": {
	    "id": "sub_1",
	    "object": "subscription",
	    "customer": "cus_1",
	    "status": "past_due",
	    "current_period_end": 1742592000,
	    "items": {"object": "list", "data": [
	      {"id": "si_1", "object": "subscription_item", "price": {"id": "price_y", "object": "price", "unit_amount": 49900, "recurring": {"interval": "year"}}}
	    ]}
	  }}
	}`)

	ev, err := NewWebhookParser("").Decode(body)
	require.NoError(t, err)
	se, ok := ev.(billing.SubscriptionEvent)
	require.True(t, ok)
	assert.Equal(t, billing.EventSubscriptionUpdated, se.Name())
	assert.Equal(t, billing.StatusPastDue, se.Subscription.Status)
	assert.Equal(t, billing.PlanYearly, se.Subscription.Cycle)
	require.NotNil(t, se.Subscription.NextDueDate)
	assert.Equal(t, int64(1742592000), se.Subscription.NextDueDate.Unix())

	tr, ok := billing.TransitionFor(ev)
	require.True(t, ok)
	assert.Equal(t, billing.StatusPastDue, tr.Status)
}

func TestDecodeChargeRefunded(t *testing.T) {
	body := []byte(`{"id":"evt_3","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1","object":"charge","customer":"cus_1","invoice":"in_9"}}}`)
	ev, err := NewWebhookParser("").Decode(body)
	require.NoError(t, err)
	pe, ok := ev.(billing.PaymentEvent)
	require.True(t, ok)
	assert.Equal(t, billing.EventPaymentRefunded, pe.Name())
	assert.Equal(t, "in_9", pe.Payment.ID)
	assert.Equal(t, "cus_1", pe.CustomerID())
}

func TestDecodeUnknown(t *testing.T) {
	body := []byte(`{"id":"evt_4","object":"event","type":"customer.updated","data":{"object":{"id":"cus_1","object":"customer","subscription":{"id":"sub_1"}}}}`)
	ev, err := NewWebhookParser("").Decode(body)
	require.NoError(t, err)
	ue, ok := ev.(billing.UnknownEvent)
	require.True(t, ok)
	assert.Equal(t, billing.EventName("customer.updated"), ue.Name())
	assert.Equal(t, "sub_1", ue.SubscriptionID())

	_, ok = billing.TransitionFor(ev)
	assert.False(t, ok)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := NewWebhookParser("").Decode([]byte(`{"id":"evt_5"}`))
	assert.ErrorIs(t, err, gateway.ErrMalformedWebhook)
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, billing.StatusActive, normalizeStatus("active"))
	assert.Equal(t, billing.StatusTrial, normalizeStatus("trialing"))
	assert.Equal(t, billing.StatusPastDue, normalizeStatus("unpaid"))
	assert.Equal(t, billing.StatusCanceled, normalizeStatus("incomplete_expired"))
	assert.Equal(t, billing.StatusPending, normalizeStatus("incomplete"))
	assert.Equal(t, billing.StatusInactive, normalizeStatus("paused"))
	assert.Equal(t, "", normalizeStatus(""))
}
