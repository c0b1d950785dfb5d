package services_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bozor/internal/services"
)

func TestVerifyPayment_ReturnsStatusAndRawPayload(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"completed","amount":25000,"currency":"UZS"}`))
	}))
	defer server.Close()

	client := services.NewGatewayClient(server.URL, "https://checkout.test", "merchant-1", "sk_test")
	res, err := client.VerifyPayment(context.Background(), "BZ-abc")

	require.NoError(t, err)
	assert.Equal(t, "completed", res.Status)
	assert.Contains(t, string(res.Raw), `"amount":25000`)
	assert.Equal(t, "/payments/BZ-abc", gotPath)
	assert.Equal(t, "Bearer sk_test", gotAuth)
}

func TestVerifyPayment_NonSuccessStatusIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"upstream unavailable"}`))
	}))
	defer server.Close()

	client := services.NewGatewayClient(server.URL, "", "merchant-1", "sk_test")
	res, err := client.VerifyPayment(context.Background(), "BZ-abc")

	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "502")
}

func TestVerifyPayment_MalformedPayloadIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := services.NewGatewayClient(server.URL, "", "merchant-1", "sk_test")
	_, err := client.VerifyPayment(context.Background(), "BZ-abc")
	require.Error(t, err)
}

func TestVerifyPayment_MissingStatusIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"amount":25000}`))
	}))
	defer server.Close()

	client := services.NewGatewayClient(server.URL, "", "merchant-1", "sk_test")
	_, err := client.VerifyPayment(context.Background(), "BZ-abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty status")
}

func TestCheckoutURL_EncodesMerchantAndPayment(t *testing.T) {
	client := services.NewGatewayClient("https://api.test", "https://checkout.test", "merchant-1", "sk_test")

	u := client.CheckoutURL("BZ-abc", 25000, "https://bozor.test/payments/return")

	require.True(t, strings.HasPrefix(u, "https://checkout.test/"))
	encoded := strings.TrimPrefix(u, "https://checkout.test/")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	assert.Contains(t, string(decoded), "m=merchant-1")
	assert.Contains(t, string(decoded), "ac.payment_id=BZ-abc")
	assert.Contains(t, string(decoded), "a=25000")
	// The secret never leaks into the client-facing URL.
	assert.NotContains(t, string(decoded), "sk_test")
}
