package identity

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"logossophia/pkg/domain"
)

const defaultLeeway = 30 * time.Second

// DefaultIssuers are the issuers Google signs ID tokens with.
var DefaultIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

var ErrMissingSubject = errors.New("credential has no subject")

// Config configures a Decoder. Without JWKSURL the decoder trusts the
// credential and reads its claims unverified.
type Config struct {
	ClientID   string
	JWKSURL    string
	Issuers    []string
	Leeway     time.Duration
	HTTPClient *http.Client
}

type profileClaims struct {
	jwt.RegisteredClaims
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// Decoder turns an ID token credential into a UserProfile.
type Decoder struct {
	clientID string
	issuers  []string
	leeway   time.Duration
	keys     *keySet
}

func NewDecoder(cfg Config) (*Decoder, error) {
	d := &Decoder{
		clientID: strings.TrimSpace(cfg.ClientID),
		issuers:  cfg.Issuers,
		leeway:   cfg.Leeway,
	}
	if len(d.issuers) == 0 {
		d.issuers = DefaultIssuers
	}
	if d.leeway <= 0 {
		d.leeway = defaultLeeway
	}
	if url := strings.TrimSpace(cfg.JWKSURL); url != "" {
		if d.clientID == "" {
			return nil, errors.New("verified sign-in requires a client id")
		}
		d.keys = newKeySet(url, cfg.HTTPClient)
	}
	return d, nil
}

// Verifying reports whether credentials are signature-checked.
func (d *Decoder) Verifying() bool { return d.keys != nil }

// Decode returns the profile carried by credential.
func (d *Decoder) Decode(credential string) (domain.UserProfile, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return domain.UserProfile{}, errors.New("credential is empty")
	}
	var claims profileClaims
	var err error
	if d.keys == nil {
		_, _, err = jwt.NewParser().ParseUnverified(credential, &claims)
	} else {
		claims, err = d.verify(credential)
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("decode credential: %w", err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return domain.UserProfile{}, ErrMissingSubject
	}
	return domain.UserProfile{
		ID:      subject,
		Name:    claims.Name,
		Email:   claims.Email,
		Picture: claims.Picture,
	}, nil
}

// Event decodes credential into a SignIn event.
func (d *Decoder) Event(credential string) (Event, error) {
	profile, err := d.Decode(credential)
	if err != nil {
		return Event{}, err
	}
	return SignInEvent(profile), nil
}

func (d *Decoder) verify(token string) (profileClaims, error) {
	if d.keys.expired() {
		if err := d.keys.refresh(); err != nil {
			return profileClaims{}, err
		}
	}
	claims, err := d.parse(token)
	if err == nil || !errors.Is(err, errUnknownKey) {
		return claims, err
	}
	if err := d.keys.refresh(); err != nil {
		return claims, err
	}
	return d.parse(token)
}

func (d *Decoder) parse(token string) (profileClaims, error) {
	var claims profileClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		kid = strings.TrimSpace(kid)
		if kid == "" {
			return nil, errUnknownKey
		}
		return d.keys.lookup(kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(d.clientID),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(d.leeway),
	)
	if err != nil {
		return claims, err
	}
	if !parsed.Valid {
		return claims, errors.New("invalid token")
	}
	if !slices.Contains(d.issuers, claims.Issuer) {
		return claims, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	return claims, nil
}
