// Package keygen produces the key material the issuer reads: a PEM encoded
// RSA private key and a public key set document whose first entry pairs with it.
package keygen

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

const minBits = 2048

// KeyPair is a freshly generated signing key.
type KeyPair struct {
	KeyID      string
	PrivateKey *rsa.PrivateKey
}

// Generate creates an RSA key. An empty kid is replaced by a random UUID.
func Generate(bits int, kid string) (KeyPair, error) {
	if bits < minBits {
		return KeyPair{}, fmt.Errorf("key size %d below minimum %d", bits, minBits)
	}
	kid = strings.TrimSpace(kid)
	if kid == "" {
		kid = uuid.NewString()
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate rsa key: %w", err)
	}
	return KeyPair{KeyID: kid, PrivateKey: key}, nil
}

// PrivatePEM encodes the private key as PKCS#8.
func (k KeyPair) PrivatePEM() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(k.PrivateKey)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// PublicJWK returns the public half as a JWK tagged with kid, alg and use.
func (k KeyPair) PublicJWK() (jwk.Key, error) {
	pub, err := jwk.FromRaw(&k.PrivateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("build jwk: %w", err)
	}
	for name, value := range map[string]any{
		jwk.KeyIDKey:     k.KeyID,
		jwk.AlgorithmKey: jwa.RS256,
		jwk.KeyUsageKey:  jwk.ForSignature,
	} {
		if err := pub.Set(name, value); err != nil {
			return nil, fmt.Errorf("set %s: %w", name, err)
		}
	}
	return pub, nil
}

// KeySet renders a key set with this key first, followed by the entries of
// existing (may be nil). Existing entries are copied verbatim, so kid-only
// descriptors survive; entries sharing the new kid are dropped.
func (k KeyPair) KeySet(existing []byte) ([]byte, error) {
	pub, err := k.PublicJWK()
	if err != nil {
		return nil, err
	}
	first, err := json.Marshal(pub)
	if err != nil {
		return nil, fmt.Errorf("encode jwk: %w", err)
	}
	doc := keySetDoc{Keys: []json.RawMessage{first}}
	if len(existing) > 0 {
		var prev keySetDoc
		if err := json.Unmarshal(existing, &prev); err != nil {
			return nil, fmt.Errorf("parse existing key set: %w", err)
		}
		for i, raw := range prev.Keys {
			var entry struct {
				KeyID string `json:"kid"`
			}
			if err := json.Unmarshal(raw, &entry); err != nil {
				return nil, fmt.Errorf("parse existing key set entry %d: %w", i, err)
			}
			if strings.TrimSpace(entry.KeyID) == k.KeyID {
				continue
			}
			doc.Keys = append(doc.Keys, raw)
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

type keySetDoc struct {
	Keys []json.RawMessage `json:"keys"`
}
