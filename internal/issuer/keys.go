package issuer

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeySet is the parsed public key set document. Only the kid of each entry is
// required; the raw entry is kept so a full JWK can be checked against the
// private key it is paired with.
type KeySet struct {
	Keys []KeyDescriptor
}

// KeyDescriptor is one element of the "keys" array.
type KeyDescriptor struct {
	KeyID string
	Raw   json.RawMessage
}

// ParseJWKS decodes a document of the form {"keys":[{"kid":"..."}, ...]}.
func ParseJWKS(data []byte) (KeySet, error) {
	var doc struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return KeySet{}, fmt.Errorf("%w: decode key set: %w", ErrParse, err)
	}
	set := KeySet{Keys: make([]KeyDescriptor, 0, len(doc.Keys))}
	for i, raw := range doc.Keys {
		var entry struct {
			KeyID string `json:"kid"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return KeySet{}, fmt.Errorf("%w: decode key set entry %d: %w", ErrParse, i, err)
		}
		set.Keys = append(set.Keys, KeyDescriptor{KeyID: strings.TrimSpace(entry.KeyID), Raw: raw})
	}
	return set, nil
}

// Select returns the descriptor used for signing. An empty kid selects the
// first entry; otherwise the entry carrying that kid is returned.
func (s KeySet) Select(kid string) (KeyDescriptor, error) {
	if len(s.Keys) == 0 {
		return KeyDescriptor{}, fmt.Errorf("%w: key set has no keys", ErrConfig)
	}
	kid = strings.TrimSpace(kid)
	if kid == "" {
		first := s.Keys[0]
		if first.KeyID == "" {
			return KeyDescriptor{}, fmt.Errorf("%w: first key set entry has no kid", ErrConfig)
		}
		return first, nil
	}
	for _, k := range s.Keys {
		if k.KeyID == kid {
			return k, nil
		}
	}
	return KeyDescriptor{}, fmt.Errorf("%w: kid %q not found in key set", ErrConfig, kid)
}

// checkPair reports a mismatch when the descriptor is a complete JWK whose
// public part differs from the private key. Descriptors that carry only a kid
// are accepted as-is.
func (d KeyDescriptor) checkPair(priv *rsa.PrivateKey) error {
	key, err := jwk.ParseKey(d.Raw)
	if err != nil {
		return nil
	}
	var pub rsa.PublicKey
	if err := key.Raw(&pub); err != nil {
		return fmt.Errorf("%w: key %q is not an RSA public key", ErrConfig, d.KeyID)
	}
	if !priv.PublicKey.Equal(&pub) {
		return fmt.Errorf("%w: key %q does not match the private key", ErrConfig, d.KeyID)
	}
	return nil
}

// ParsePrivateKey decodes a PEM encoded RSA key in PKCS#1 or PKCS#8 form.
func ParsePrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("%w: invalid PEM private key", ErrCrypto)
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
		}
		return key, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
		}
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrCrypto, errors.New("unsupported private key type"))
	default:
		return nil, fmt.Errorf("%w: unsupported private key type %s", ErrCrypto, block.Type)
	}
}
