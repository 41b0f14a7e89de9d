package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolVerifier_Verify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","price":"50000.10000000"},{"symbol":"ETHUSDT","price":"3000.00000000"}]`))
	}))
	defer srv.Close()

	res, err := NewSymbolVerifier(srv.URL).Verify(context.Background(), []string{"BTCUSDT", "FOOUSDT", "BTCUSDT"})
	require.NoError(t, err)

	assert.Equal(t, []string{"FOOUSDT"}, res.Missing)
	require.Contains(t, res.Prices, "BTCUSDT")
	assert.True(t, decimal.RequireFromString("50000.1").Equal(res.Prices["BTCUSDT"]))
	assert.NotContains(t, res.Prices, "ETHUSDT")
}

func TestSymbolVerifier_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"code":-1,"msg":"nope"}`))
	}))
	defer srv.Close()

	_, err := NewSymbolVerifier(srv.URL).Verify(context.Background(), []string{"BTCUSDT"})
	assert.Error(t, err)
}
