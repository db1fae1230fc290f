package sheetsinfra

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fundwise/fundsheet/store"
)

// refreshInterval forces a token refresh even before expiry; the hosted
// API starts rejecting hour-old tokens under clock skew.
const refreshInterval = 50 * time.Minute

// defaultScope grants read/write access to spreadsheet documents.
const defaultScope = "https://www.googleapis.com/auth/spreadsheets"

// TokenSource provides bearer tokens for API sessions. Invalidate drops
// the cached token after the server rejects it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// StaticTokenSource returns a fixed token. Used for local development
// against emulators and throughout the tests.
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token(context.Context) (string, error) {
	if s == "" {
		return "", &store.AuthError{Reason: "no credentials configured"}
	}
	return string(s), nil
}

// Invalidate implements TokenSource. A static token cannot be refreshed.
func (StaticTokenSource) Invalidate() {}

// ServiceAccountKey is the subset of a service-account JSON key the
// client needs.
type ServiceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// LoadServiceAccountKey accepts either an inline JSON blob or a path to
// a key file, matching how deployments pass credentials around.
func LoadServiceAccountKey(credentials string) (*ServiceAccountKey, error) {
	raw := []byte(credentials)
	if !strings.HasPrefix(strings.TrimSpace(credentials), "{") {
		b, err := os.ReadFile(credentials)
		if err != nil {
			return nil, &store.AuthError{Reason: "reading credentials file", Err: err}
		}
		raw = b
	}
	var key ServiceAccountKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, &store.AuthError{Reason: "parsing credentials", Err: err}
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, &store.AuthError{Reason: "credentials missing client_email or private_key"}
	}
	if key.TokenURI == "" {
		key.TokenURI = "https://oauth2.googleapis.com/token"
	}
	return &key, nil
}

// serviceAccountSource exchanges a signed JWT assertion for short-lived
// access tokens, refreshing when expired or refreshInterval has elapsed.
// The refresh path is mutex-guarded so concurrent callers do not race.
type serviceAccountSource struct {
	key    *ServiceAccountKey
	scope  string
	signer *rsa.PrivateKey
	client *http.Client

	mu          sync.Mutex
	token       string
	expiry      time.Time
	lastRefresh time.Time
}

// NewServiceAccountTokenSource parses the key material and returns a
// refreshing token source.
func NewServiceAccountTokenSource(key *ServiceAccountKey, scope string) (TokenSource, error) {
	if scope == "" {
		scope = defaultScope
	}
	signer, err := parsePrivateKey(key.PrivateKey)
	if err != nil {
		return nil, &store.AuthError{Reason: "invalid private key", Err: err}
	}
	return &serviceAccountSource{
		key:    key,
		scope:  scope,
		signer: signer,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not RSA")
		}
		return rsaKey, nil
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// Token implements TokenSource.
func (s *serviceAccountSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	fresh := s.token != "" && now.Before(s.expiry) && now.Sub(s.lastRefresh) < refreshInterval
	if fresh {
		return s.token, nil
	}

	token, expiry, err := s.exchange(ctx)
	if err != nil {
		return "", &store.AuthError{Reason: "credential refresh failed", Err: err}
	}
	s.token = token
	s.expiry = expiry
	s.lastRefresh = now
	return s.token, nil
}

// Invalidate implements TokenSource.
func (s *serviceAccountSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiry = time.Time{}
}

func (s *serviceAccountSource) exchange(ctx context.Context) (string, time.Time, error) {
	assertion, err := s.signAssertion(time.Now())
	if err != nil {
		return "", time.Time{}, err
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.key.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", time.Time{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, snippet(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", time.Time{}, err
	}
	if payload.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("token endpoint returned no access_token")
	}
	return payload.AccessToken, time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second), nil
}

// signAssertion builds the RS256-signed JWT the token endpoint expects.
func (s *serviceAccountSource) signAssertion(now time.Time) (string, error) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	claims, err := json.Marshal(map[string]any{
		"iss":   s.key.ClientEmail,
		"scope": s.scope,
		"aud":   s.key.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	if err != nil {
		return "", err
	}

	signingInput := header + "." + base64.RawURLEncoding.EncodeToString(claims)
	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.signer, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

func snippet(body []byte) string {
	const max = 256
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
