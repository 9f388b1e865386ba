package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	adminapi "zona-pedidos/internal/api/admin"
	"zona-pedidos/internal/api/billing"
	"zona-pedidos/internal/api/gatewaywebhook"
	domain "zona-pedidos/internal/domain/billing"
	"zona-pedidos/internal/domain/tenants"
	"zona-pedidos/internal/infra/asaas"
	"zona-pedidos/internal/infra/gateway"
	"zona-pedidos/internal/infra/identity"
	billingsvc "zona-pedidos/internal/service/billing"
	"zona-pedidos/internal/store"
	"zona-pedidos/internal/store/storetest"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtSecret     = "jwt-test-secret"
	operatorToken = "operator-token"
	webhookToken  = "whsec-test"
)

type app struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := storetest.Open(t)
	st := store.New(db)

	tn := &tenants.Tenant{Name: "Doceria Bela", SubscriptionStatus: domain.StatusInactive, Plan: domain.PlanFree}
	require.NoError(t, db.Create(tn).Error)
	require.NoError(t, db.Create(&tenants.Profile{UserID: "user-1", TenantID: tn.ID, Email: "ana@example.com"}).Error)

	svc := billingsvc.New(
		st,
		gateway.Unconfigured{Provider: asaas.ProviderName, Key: "ASAAS_API_KEY"},
		asaas.NewWebhookParser(webhookToken, time.UTC),
		billingsvc.Settings{TrialDays: 7, GraceDays: 3, Location: time.UTC},
	)

	hash, err := bcrypt.GenerateFromPassword([]byte(operatorToken), bcrypt.MinCost)
	require.NoError(t, err)

	r := gin.New()
	RegisterRoutes(r, Deps{
		Billing:           billing.NewHandler(svc),
		Webhook:           gatewaywebhook.NewHandler(svc, asaas.ProviderName),
		Admin:             adminapi.NewHandler(svc),
		Verifier:          identity.NewJWTVerifier(jwtSecret),
		Tenants:           st,
		Access:            svc,
		OperatorTokenHash: string(hash),
	})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-1",
		"email": "ana@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	require.NoError(t, err)

	return &app{t: t, router: r, token: signed}
}

func (a *app) do(method, path, auth string, header http.Header, body string) (int, map[string]interface{}) {
	a.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range header {
		req.Header[k] = v
	}
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

func TestPublicRoutes(t *testing.T) {
	a := newApp(t)

	code, body := a.do(http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, _ = a.do(http.MethodGet, "/metrics", "", nil, "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = a.do(http.MethodGet, "/billing/status", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestTrialOpensTheGate(t *testing.T) {
	a := newApp(t)

	code, body := a.do(http.MethodGet, "/app/session", a.token, nil, "")
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, "billing_required", body["code"])

	code, body = a.do(http.MethodPost, "/billing/trial", a.token, nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["started"])

	code, body = a.do(http.MethodGet, "/app/session", a.token, nil, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ana@example.com", body["email"])

	code, body = a.do(http.MethodPost, "/billing/trial", a.token, nil, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["started"])
	assert.Equal(t, "trial_already_used", body["reason"])

	code, body = a.do(http.MethodGet, "/billing/status", a.token, nil, "")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 7, body["trial_days_left"])
}

func TestGatewayWithoutSecretFailsWithConfigError(t *testing.T) {
	a := newApp(t)

	code, body := a.do(http.MethodPost, "/billing/subscription", a.token, nil, `{"cycle":"MONTHLY","tax_id":"52998224725"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "config_missing", body["code"])
	assert.Equal(t, "ASAAS_API_KEY", body["details"])
}

func TestWebhookQueueAndOperatorRoutes(t *testing.T) {
	a := newApp(t)
	hdr := http.Header{}
	hdr.Set(asaas.TokenHeader, webhookToken)

	code, body := a.do(http.MethodPost, "/webhooks/billing", "", hdr, `{"id":"evt_1","event":"PAYMENT_RECEIVED","payment":{"id":"pay_1","customer":"cus_unknown","subscription":"sub_1","dueDate":"2025-04-10"}}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["received"])
	assert.Equal(t, domain.EventStatusIgnored, body["status"])

	code, _ = a.do(http.MethodPost, "/webhooks/billing", "", nil, `{"event":"PAYMENT_RECEIVED"}`)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.do(http.MethodGet, "/admin/webhook-events", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.do(http.MethodGet, "/admin/webhook-events", a.token, nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = a.do(http.MethodGet, "/admin/webhook-events?status=ignored", operatorToken, nil, "")
	require.Equal(t, http.StatusOK, code)
	events := body["events"].([]interface{})
	require.Len(t, events, 1)
	id := events[0].(map[string]interface{})["id"].(string)

	code, body = a.do(http.MethodPost, "/admin/webhook-events/"+id+"/replay", operatorToken, nil, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, billingsvc.OutcomeUnknownTenant, body["outcome"])
}
