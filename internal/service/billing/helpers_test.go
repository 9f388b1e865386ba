package billing

import (
	"errors"
	"testing"

	"zona-pedidos/internal/apperr"
	"zona-pedidos/internal/infra/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperr.CodeOf(err), err.Error())
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), err.Error())
}

func errUpstream(description string) error {
	return &gateway.Error{Provider: "fake", Op: "test", StatusCode: 400, Descriptions: []string{description}, Err: errors.New("Bad Request")}
}

func gatewayCustomer(taxID string) gateway.CustomerParams {
	return gateway.CustomerParams{Name: "Doceria Bela", Email: "contato@doceria.com", TaxID: taxID}
}
