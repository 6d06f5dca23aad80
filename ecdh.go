package webpush

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

func b64Encoding(s string) *base64.Encoding {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '-', '_':
			return base64.URLEncoding
		case '+', '/':
			return base64.StdEncoding
		}
	}
	return base64.URLEncoding
}

// We're being permissive in the variations of B64 encoding being used.
// Browsers hand out unpadded values, so input is re-padded to a multiple of
// four before decoding.
func b64Decode(s string) ([]byte, error) {
	if n := len(s) % 4; n != 0 {
		s += strings.Repeat("=", 4-n)
	}
	return b64Encoding(s).DecodeString(s)
}

func b64Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// agreement holds the result of ECDH between a fresh application server key
// and the user agent's key.
type agreement struct {
	sharedSecret    []byte
	serverPublicKey []byte
	clientPublicKey []byte
}

func (a *agreement) zero() {
	clear(a.sharedSecret)
}

// agree generates a single use P-256 key and computes the shared secret with
// the user agent's uncompressed public key.
func agree(clientPublicKey []byte) (*agreement, error) {
	userAgentPublicKey, err := ecdh.P256().NewPublicKey(clientPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid public key: %w", ErrInvalidArgument, err)
	}

	// New Key for this Message
	appServerPrivateKey, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	sharedSecret, err := appServerPrivateKey.ECDH(userAgentPublicKey)
	if err != nil {
		return nil, err
	}

	return &agreement{
		sharedSecret:    sharedSecret,
		serverPublicKey: appServerPrivateKey.PublicKey().Bytes(),
		clientPublicKey: userAgentPublicKey.Bytes(),
	}, nil
}

// receive is the user agent side of agree.
func receive(userAgentPrivateKey *ecdh.PrivateKey, serverPublicKey []byte) (*agreement, error) {
	appServerPublicKey, err := ecdh.P256().NewPublicKey(serverPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid server public key: %w", ErrDecryption, err)
	}
	sharedSecret, err := userAgentPrivateKey.ECDH(appServerPublicKey)
	if err != nil {
		return nil, err
	}
	return &agreement{
		sharedSecret:    sharedSecret,
		serverPublicKey: appServerPublicKey.Bytes(),
		clientPublicKey: userAgentPrivateKey.PublicKey().Bytes(),
	}, nil
}
