package issuer

import (
	"context"
	"crypto/rsa"
	"fmt"
	"os"
	"strings"
	"time"
)

const defaultReadTimeout = 5 * time.Second

// SigningKey is the private key together with the kid stamped into token headers.
type SigningKey struct {
	Key   *rsa.PrivateKey
	KeyID string
}

// KeyProvider supplies signing material to the Issuer.
type KeyProvider interface {
	SigningKey(ctx context.Context) (SigningKey, error)
}

// FileKeyProvider loads the PEM private key and the key set document from
// disk on every call. Nothing is cached.
type FileKeyProvider struct {
	privateKeyPath string
	jwksPath       string
	keyID          string
	timeout        time.Duration
}

// NewFileKeyProvider builds a provider from the issuer configuration.
func NewFileKeyProvider(cfg Config) *FileKeyProvider {
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}
	return &FileKeyProvider{
		privateKeyPath: strings.TrimSpace(cfg.PrivateKeyPath),
		jwksPath:       strings.TrimSpace(cfg.JWKSPath),
		keyID:          strings.TrimSpace(cfg.KeyID),
		timeout:        timeout,
	}
}

// SigningKey reads both files, bounded by the configured read timeout.
func (p *FileKeyProvider) SigningKey(ctx context.Context) (SigningKey, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		key SigningKey
		err error
	}
	done := make(chan result, 1)
	go func() {
		key, err := p.load()
		done <- result{key: key, err: err}
	}()

	select {
	case <-ctx.Done():
		return SigningKey{}, fmt.Errorf("%w: read key material: %w", ErrConfig, ctx.Err())
	case r := <-done:
		return r.key, r.err
	}
}

func (p *FileKeyProvider) load() (SigningKey, error) {
	if p.privateKeyPath == "" {
		return SigningKey{}, fmt.Errorf("%w: private key path is not configured", ErrConfig)
	}
	if p.jwksPath == "" {
		return SigningKey{}, fmt.Errorf("%w: key set path is not configured", ErrConfig)
	}
	pemData, err := os.ReadFile(p.privateKeyPath)
	if err != nil {
		return SigningKey{}, fmt.Errorf("%w: read private key: %w", ErrConfig, err)
	}
	jwksData, err := os.ReadFile(p.jwksPath)
	if err != nil {
		return SigningKey{}, fmt.Errorf("%w: read key set: %w", ErrConfig, err)
	}
	set, err := ParseJWKS(jwksData)
	if err != nil {
		return SigningKey{}, err
	}
	desc, err := set.Select(p.keyID)
	if err != nil {
		return SigningKey{}, err
	}
	priv, err := ParsePrivateKey(pemData)
	if err != nil {
		return SigningKey{}, err
	}
	if err := desc.checkPair(priv); err != nil {
		return SigningKey{}, err
	}
	return SigningKey{Key: priv, KeyID: desc.KeyID}, nil
}
