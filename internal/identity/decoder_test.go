package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func googleClaims(sub, aud, iss string) profileClaims {
	return profileClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    iss,
			Audience:  jwt.ClaimStrings{aud},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Name:    "Hermes Trismegistus",
		Email:   "hermes@example.com",
		Picture: "https://example.com/h.png",
	}
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims profileClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func toJWK(kid string, key rsa.PublicKey) map[string]string {
	return map[string]string{
		"kty": "RSA",
		"kid": kid,
		"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}
}

func TestDecodeUnverifiedReadsProfile(t *testing.T) {
	d, err := NewDecoder(Config{})
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}
	if d.Verifying() {
		t.Fatalf("decoder without jwks must not verify")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, googleClaims("user-42", "any", "accounts.google.com"))
	signed, err := token.SignedString([]byte("not-checked"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	ev, err := d.Event(signed)
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	if ev.Kind != SignIn || ev.Profile == nil {
		t.Fatalf("expected sign-in event, got %+v", ev)
	}
	p := *ev.Profile
	if p.ID != "user-42" || p.Name != "Hermes Trismegistus" || p.Email != "hermes@example.com" || p.Picture != "https://example.com/h.png" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestDecodeRejectsGarbageAndMissingSubject(t *testing.T) {
	d, _ := NewDecoder(Config{})
	if _, err := d.Decode(""); err == nil {
		t.Fatalf("expected empty credential to fail")
	}
	if _, err := d.Decode("not.a.jwt"); err == nil {
		t.Fatalf("expected garbage credential to fail")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, googleClaims("", "aud", "accounts.google.com"))
	signed, _ := token.SignedString([]byte("k"))
	if _, err := d.Decode(signed); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}

func TestNewDecoderWithJWKSRequiresClientID(t *testing.T) {
	if _, err := NewDecoder(Config{JWKSURL: "http://127.0.0.1:1/certs"}); err == nil {
		t.Fatalf("expected missing client id to fail")
	}
}

func TestDecodeVerifiedAndRefreshOnUnknownKid(t *testing.T) {
	key1, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key1: %v", err)
	}
	key2, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key2: %v", err)
	}

	var rotated atomic.Bool
	var fetches atomic.Int32
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		keys := []map[string]string{toJWK("kid-1", key1.PublicKey)}
		if rotated.Load() {
			keys = []map[string]string{toJWK("kid-2", key2.PublicKey)}
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": keys})
	}))
	defer jwksServer.Close()

	d, err := NewDecoder(Config{ClientID: "client-a", JWKSURL: jwksServer.URL})
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}

	p, err := d.Decode(signRS256(t, key1, "kid-1", googleClaims("user-a", "client-a", "https://accounts.google.com")))
	if err != nil || p.ID != "user-a" {
		t.Fatalf("verify token1: profile=%+v err=%v", p, err)
	}

	rotated.Store(true)
	p, err = d.Decode(signRS256(t, key2, "kid-2", googleClaims("user-b", "client-a", "accounts.google.com")))
	if err != nil || p.ID != "user-b" {
		t.Fatalf("verify token2 after rotation: profile=%+v err=%v", p, err)
	}
	if fetches.Load() != 2 {
		t.Fatalf("expected one refresh on unknown kid, fetches=%d", fetches.Load())
	}
}

func TestDecodeVerifiedRejectsWrongAudienceAndIssuer(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{toJWK("kid-1", key.PublicKey)}})
	}))
	defer jwksServer.Close()

	d, err := NewDecoder(Config{ClientID: "client-a", JWKSURL: jwksServer.URL})
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}
	if _, err := d.Decode(signRS256(t, key, "kid-1", googleClaims("u", "client-b", "accounts.google.com"))); err == nil {
		t.Fatalf("expected wrong audience to fail")
	}
	if _, err := d.Decode(signRS256(t, key, "kid-1", googleClaims("u", "client-a", "https://evil.example.com"))); err == nil {
		t.Fatalf("expected wrong issuer to fail")
	}

	expired := googleClaims("u", "client-a", "accounts.google.com")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	if _, err := d.Decode(signRS256(t, key, "kid-1", expired)); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestParseCacheMaxAge(t *testing.T) {
	if got := parseCacheMaxAge("public, max-age=120, must-revalidate"); got != 2*time.Minute {
		t.Fatalf("unexpected max-age: %v", got)
	}
	if got := parseCacheMaxAge("no-store"); got != 0 {
		t.Fatalf("expected zero without max-age, got %v", got)
	}
}
