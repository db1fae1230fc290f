package sheetsinfra

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundwise/fundsheet/store"
)

func testKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}

func TestStaticTokenSource(t *testing.T) {
	tok, err := StaticTokenSource("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = StaticTokenSource("").Token(context.Background())
	var authErr *store.AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestLoadServiceAccountKeyInline(t *testing.T) {
	blob, err := json.Marshal(map[string]string{
		"client_email": "svc@example.iam",
		"private_key":  testKeyPEM(t),
	})
	require.NoError(t, err)

	key, err := LoadServiceAccountKey(string(blob))
	require.NoError(t, err)
	assert.Equal(t, "svc@example.iam", key.ClientEmail)
	assert.Equal(t, "https://oauth2.googleapis.com/token", key.TokenURI, "token URI defaults when absent")
}

func TestLoadServiceAccountKeyRejectsIncomplete(t *testing.T) {
	_, err := LoadServiceAccountKey(`{"client_email":"svc@example.iam"}`)
	var authErr *store.AuthError
	require.ErrorAs(t, err, &authErr)

	_, err = LoadServiceAccountKey("/no/such/key.json")
	require.ErrorAs(t, err, &authErr)
}

func TestServiceAccountTokenExchange(t *testing.T) {
	var assertions int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.Form.Get("grant_type"))
		assert.Len(t, strings.Split(r.Form.Get("assertion"), "."), 3, "assertion is a signed JWT")
		assertions++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "exchanged-token",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	source, err := NewServiceAccountTokenSource(&ServiceAccountKey{
		ClientEmail: "svc@example.iam",
		PrivateKey:  testKeyPEM(t),
		TokenURI:    srv.URL,
	}, "")
	require.NoError(t, err)

	tok, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "exchanged-token", tok)

	// A fresh token is served from cache without another exchange.
	tok, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "exchanged-token", tok)
	assert.Equal(t, 1, assertions)

	// Invalidation forces the next call back to the endpoint.
	source.Invalidate()
	_, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, assertions)
}

func TestServiceAccountTokenExchangeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid_grant", http.StatusBadRequest)
	}))
	defer srv.Close()

	source, err := NewServiceAccountTokenSource(&ServiceAccountKey{
		ClientEmail: "svc@example.iam",
		PrivateKey:  testKeyPEM(t),
		TokenURI:    srv.URL,
	}, "")
	require.NoError(t, err)

	_, err = source.Token(context.Background())
	var authErr *store.AuthError
	assert.ErrorAs(t, err, &authErr)
}
