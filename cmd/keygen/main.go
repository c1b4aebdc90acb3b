package main

import (
	"errors"
	"flag"
	"io/fs"
	"os"
	"path/filepath"

	"wvjwtsso.org/internal/keygen"
	"wvjwtsso.org/internal/obs"
)

func main() {
	log := obs.Logger()
	var (
		outDir  = flag.String("out", "keys", "Directory for private.pem and jwks.json")
		bits    = flag.Int("bits", 2048, "RSA key size")
		kid     = flag.String("kid", "", "Key identifier (random UUID when empty)")
		prepend = flag.Bool("prepend", false, "Keep existing jwks.json entries after the new key")
	)
	flag.Parse()

	kp, err := keygen.Generate(*bits, *kid)
	if err != nil {
		log.WithError(err).Fatal("generate key")
	}
	privPEM, err := kp.PrivatePEM()
	if err != nil {
		log.WithError(err).Fatal("encode private key")
	}

	jwksPath := filepath.Join(*outDir, "jwks.json")
	var existing []byte
	if *prepend {
		existing, err = os.ReadFile(jwksPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.WithError(err).Fatal("read existing key set")
		}
	}
	jwks, err := kp.KeySet(existing)
	if err != nil {
		log.WithError(err).Fatal("build key set")
	}

	if err := os.MkdirAll(*outDir, 0o750); err != nil {
		log.WithError(err).Fatal("create output directory")
	}
	privPath := filepath.Join(*outDir, "private.pem")
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		log.WithError(err).Fatal("write private key")
	}
	if err := os.WriteFile(jwksPath, jwks, 0o644); err != nil {
		log.WithError(err).Fatal("write key set")
	}
	log.WithField("kid", kp.KeyID).WithField("private_key", privPath).WithField("jwks", jwksPath).Info("key material written")
}
