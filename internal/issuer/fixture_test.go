package issuer

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

var testKey *rsa.PrivateKey

func init() {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	testKey = key
}

type keyFixture struct {
	dir            string
	privateKeyPath string
	jwksPath       string
}

func newKeyFixture(t *testing.T) keyFixture {
	t.Helper()
	dir := t.TempDir()
	f := keyFixture{
		dir:            dir,
		privateKeyPath: filepath.Join(dir, "private.pem"),
		jwksPath:       filepath.Join(dir, "jwks.json"),
	}
	der := x509.MarshalPKCS1PrivateKey(testKey)
	writeFile(t, f.privateKeyPath, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}))
	return f
}

func (f keyFixture) config() Config {
	return Config{
		Issuer:         "zoom",
		Audience:       "workvivo",
		OrganisationID: "42",
		PrivateKeyPath: f.privateKeyPath,
		JWKSPath:       f.jwksPath,
	}
}

// writeKeySet writes a key set whose first entry is the full public JWK for
// testKey, followed by kid-only descriptors.
func (f keyFixture) writeKeySet(t *testing.T, kid string, extraKids ...string) jwk.Set {
	t.Helper()
	pub, err := jwk.FromRaw(&testKey.PublicKey)
	if err != nil {
		t.Fatalf("jwk.FromRaw: %v", err)
	}
	if err := pub.Set(jwk.KeyIDKey, kid); err != nil {
		t.Fatalf("set kid: %v", err)
	}
	if err := pub.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		t.Fatalf("set alg: %v", err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		t.Fatalf("add key: %v", err)
	}

	entries := []any{pub}
	for _, extra := range extraKids {
		entries = append(entries, map[string]string{"kid": extra})
	}
	data, err := json.Marshal(map[string]any{"keys": entries})
	if err != nil {
		t.Fatalf("marshal key set: %v", err)
	}
	writeFile(t, f.jwksPath, data)
	return set
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func decodeSegment(t *testing.T, token string, idx int) map[string]any {
	t.Helper()
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 token segments, got %d", len(parts))
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[idx])
	if err != nil {
		t.Fatalf("decode segment %d: %v", idx, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal segment %d: %v", idx, err)
	}
	return out
}
