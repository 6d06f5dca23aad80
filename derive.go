package webpush

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	prkLen   = 32
	cekLen   = 16
	nonceLen = 12
	saltLen  = 16
	authLen  = 16
)

// secrets are scoped to a single message.
type secrets struct {
	prk   []byte
	cek   []byte
	nonce []byte
}

func (s *secrets) zero() {
	clear(s.prk)
	clear(s.cek)
	clear(s.nonce)
}

func hkdfExpand(length int, secret, salt, info []byte) ([]byte, error) {
	hkdfReader := hkdf.New(sha256.New, secret, salt, info)
	key := make([]byte, length)
	_, err := io.ReadFull(hkdfReader, key)
	return key, err
}

// deriveSecrets runs the two chained HKDF steps: the PRK from the shared
// secret keyed by the auth secret, then the content encryption key and nonce
// from the PRK keyed by the salt.
func deriveSecrets(f Format, sharedSecret, authSecret, serverKey, clientKey, salt []byte) (*secrets, error) {
	prk, err := hkdfExpand(prkLen, sharedSecret, authSecret, f.authInfo(serverKey, clientKey))
	if err != nil {
		return nil, err
	}

	// Derive Content Encryption Key
	cek, err := hkdfExpand(cekLen, prk, salt, f.cekInfo(serverKey, clientKey))
	if err != nil {
		return nil, err
	}

	// Derive Nonce
	nonce, err := hkdfExpand(nonceLen, prk, salt, f.nonceInfo(serverKey, clientKey))
	if err != nil {
		return nil, err
	}

	return &secrets{prk: prk, cek: cek, nonce: nonce}, nil
}
