package issuer

import "errors"

// Issuance failures. Every error returned by Issue matches exactly one of these via errors.Is.
var (
	ErrConfig       = errors.New("issuer: configuration error")
	ErrParse        = errors.New("issuer: parse error")
	ErrCrypto       = errors.New("issuer: crypto error")
	ErrInvalidInput = errors.New("issuer: invalid input")
)
