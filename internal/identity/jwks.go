package identity

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultJWKSCacheTTL = 5 * time.Minute

var errUnknownKey = errors.New("unknown token key")

// keySet caches the RSA keys published at a JWKS endpoint.
type keySet struct {
	url        string
	httpClient *http.Client

	mu         sync.RWMutex
	rsaKeys    map[string]any
	keysExpire time.Time
}

func newKeySet(url string, client *http.Client) *keySet {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &keySet{url: url, httpClient: client}
}

func (k *keySet) lookup(kid string) (any, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.rsaKeys[kid]
	if !ok {
		return nil, errUnknownKey
	}
	return key, nil
}

func (k *keySet) expired() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return time.Now().UTC().After(k.keysExpire)
}

func (k *keySet) refresh() error {
	req, err := http.NewRequest(http.MethodGet, k.url, nil)
	if err != nil {
		return err
	}
	resp, err := k.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}

	var payload struct {
		Keys []struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}

	keys := make(map[string]any, len(payload.Keys))
	for _, jwk := range payload.Keys {
		if strings.ToUpper(strings.TrimSpace(jwk.Kty)) != "RSA" {
			continue
		}
		kid := strings.TrimSpace(jwk.Kid)
		if kid == "" {
			continue
		}
		pub, err := parseRSAPublicKey(jwk.N, jwk.E)
		if err != nil {
			continue
		}
		keys[kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("jwks contains no usable rsa keys")
	}

	ttl := parseCacheMaxAge(resp.Header.Get("Cache-Control"))
	if ttl <= 0 {
		ttl = defaultJWKSCacheTTL
	}

	k.mu.Lock()
	k.rsaKeys = keys
	k.keysExpire = time.Now().UTC().Add(ttl)
	k.mu.Unlock()
	return nil
}

func parseRSAPublicKey(nRaw, eRaw string) (any, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(nRaw))
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(eRaw))
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(nBytes)
	eBig := new(big.Int).SetBytes(eBytes)
	if n.Sign() <= 0 || !eBig.IsInt64() || eBig.Int64() <= 0 {
		return nil, errors.New("invalid rsa key")
	}
	return &rsa.PublicKey{N: n, E: int(eBig.Int64())}, nil
}

// parseCacheMaxAge reads max-age from a Cache-Control header.
func parseCacheMaxAge(cacheControl string) time.Duration {
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if !strings.HasPrefix(part, "max-age=") {
			continue
		}
		secs, err := time.ParseDuration(strings.TrimPrefix(part, "max-age=") + "s")
		if err != nil {
			return 0
		}
		return secs
	}
	return 0
}
