package issuer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTTL = time.Hour

// Config carries the values stamped into every token and where key material lives.
type Config struct {
	Issuer         string
	Audience       string
	OrganisationID string
	PrivateKeyPath string
	JWKSPath       string
	// KeyID selects the key set entry by kid. Empty selects the first entry.
	KeyID       string
	ReadTimeout time.Duration
	TTL         time.Duration
}

// OrganisationIDInt parses the configured organisation id.
func (c Config) OrganisationIDInt() (int64, error) {
	raw := strings.TrimSpace(c.OrganisationID)
	if raw == "" {
		return 0, fmt.Errorf("%w: organisation id is not configured", ErrConfig)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: organisation id %q: %w", ErrConfig, raw, err)
	}
	return id, nil
}

// Claims is the payload of an issued token. Mobile is omitted unless true.
type Claims struct {
	Issuer         string `json:"iss"`
	Subject        string `json:"sub"`
	Audience       string `json:"aud"`
	IssuedAt       int64  `json:"iat"`
	NotBefore      int64  `json:"nbf"`
	ExpiresAt      int64  `json:"exp"`
	Email          string `json:"email"`
	DisableState   bool   `json:"disableState"`
	OrganisationID int64  `json:"organisation_id"`
	Mobile         bool   `json:"mobile,omitempty"`
}

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c Claims) GetNotBefore() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.NotBefore, 0)), nil
}

func (c Claims) GetIssuer() (string, error)  { return c.Issuer, nil }
func (c Claims) GetSubject() (string, error) { return c.Subject, nil }

func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}

// Issuer mints RS256 identity assertions. It holds no mutable state and is
// safe for concurrent use.
type Issuer struct {
	cfg  Config
	keys KeyProvider
	now  func() time.Time
}

// Option configures Issuer behavior.
type Option func(*Issuer) error

// WithKeyProvider replaces the file based key provider.
func WithKeyProvider(p KeyProvider) Option {
	return func(i *Issuer) error {
		if p == nil {
			return fmt.Errorf("%w: nil key provider", ErrConfig)
		}
		i.keys = p
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(i *Issuer) error {
		if fn != nil {
			i.now = fn
		}
		return nil
	}
}

// New constructs an Issuer. Key material is not touched until Issue is called.
func New(cfg Config, opts ...Option) (*Issuer, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	i := &Issuer{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	if i.keys == nil {
		i.keys = NewFileKeyProvider(cfg)
	}
	return i, nil
}

// Claims builds the payload for email at the given instant. The email is
// asserted exactly as given; only a blank value is rejected.
func (i *Issuer) Claims(email string, isMobile bool, now time.Time) (Claims, error) {
	if strings.TrimSpace(email) == "" {
		return Claims{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	orgID, err := i.cfg.OrganisationIDInt()
	if err != nil {
		return Claims{}, err
	}
	ts := now.Unix()
	return Claims{
		Issuer:         i.cfg.Issuer,
		Subject:        email,
		Audience:       i.cfg.Audience,
		IssuedAt:       ts,
		NotBefore:      ts,
		ExpiresAt:      ts + int64(i.cfg.TTL/time.Second),
		Email:          email,
		DisableState:   true,
		OrganisationID: orgID,
		Mobile:         isMobile,
	}, nil
}

// Issue signs a token asserting email for the relying party.
func (i *Issuer) Issue(ctx context.Context, email string, isMobile bool) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	key, err := i.keys.SigningKey(ctx)
	if err != nil {
		return "", err
	}
	if key.Key == nil || key.KeyID == "" {
		return "", fmt.Errorf("%w: key provider returned no key", ErrConfig)
	}
	claims, err := i.Claims(email, isMobile, i.now())
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = key.KeyID
	signed, err := token.SignedString(key.Key)
	if err != nil {
		return "", fmt.Errorf("%w: sign token: %w", ErrCrypto, err)
	}
	if signed == "" {
		return "", fmt.Errorf("%w: empty signature", ErrCrypto)
	}
	return signed, nil
}
