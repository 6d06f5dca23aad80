package webpush

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// Push services are not required to accept a record larger than this.
	// Apple for example does not.
	maxCiphertextSize = 4096

	// AEAD_AES_128_GCM expansion.
	tagLen = 16

	// Two bytes of padding length for aesgcm, or the 0x02 delimiter plus one
	// byte of padding for aes128gcm.
	paddingLen = 2

	// MaxMessageSize is the largest plaintext accepted in either format.
	MaxMessageSize = maxCiphertextSize - tagLen - paddingLen

	// salt(16) + rs(4) + idlen(1)
	headerFixedLen = saltLen + 4 + 1
)

func newGCM(key []byte) (cipher.AEAD, error) {
	aesCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(aesCipher)
}

// seal pads and encrypts a single record.
//
//	aesgcm:    0x00 0x00 || plaintext
//	aes128gcm: plaintext || 0x02 0x00
func seal(f Format, plaintext, cek, nonce []byte) ([]byte, error) {
	gcm, err := newGCM(cek)
	if err != nil {
		return nil, err
	}

	// Single allocation for the padded plaintext which is then sealed in
	// place, leaving room for the tag.
	record := make([]byte, 0, len(plaintext)+paddingLen+gcm.Overhead())
	if f == FormatAESGCM {
		record = append(record, 0, 0)
		record = append(record, plaintext...)
	} else {
		record = append(record, plaintext...)
		record = append(record, 0x02, 0x00)
	}
	return gcm.Seal(record[:0], nonce, record, nil), nil
}

// open is the inverse of seal.
func open(f Format, ciphertext, cek, nonce []byte) ([]byte, error) {
	gcm, err := newGCM(cek)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}

	if f == FormatAESGCM {
		if len(plaintext) < paddingLen {
			return nil, fmt.Errorf("%w: record too short", ErrDecryption)
		}
		pad := int(binary.BigEndian.Uint16(plaintext))
		if paddingLen+pad > len(plaintext) {
			return nil, fmt.Errorf("%w: padding length %d exceeds record", ErrDecryption, pad)
		}
		for _, b := range plaintext[paddingLen : paddingLen+pad] {
			if b != 0 {
				return nil, fmt.Errorf("%w: non-zero padding", ErrDecryption)
			}
		}
		return plaintext[paddingLen+pad:], nil
	}

	n := len(plaintext)
	if n < paddingLen || plaintext[n-2] != 0x02 || plaintext[n-1] != 0x00 {
		return nil, fmt.Errorf("%w: missing record delimiter", ErrDecryption)
	}
	return plaintext[:n-paddingLen], nil
}

// appendHeader writes the aes128gcm content coding header.
//
//	+-----------+--------+-----------+---------------+
//	| salt (16) | rs (4) | idlen (1) | keyid (idlen) |
//	+-----------+--------+-----------+---------------+
func appendHeader(dst, salt []byte, recordSize uint32, keyID []byte) []byte {
	dst = append(dst, salt...)
	dst = binary.BigEndian.AppendUint32(dst, recordSize)
	dst = append(dst, byte(len(keyID)))
	return append(dst, keyID...)
}

// Message is an encrypted payload and the values the user agent needs to
// decrypt it.
type Message struct {
	Format          Format
	Ciphertext      []byte // includes the authentication tag
	Salt            []byte
	ServerPublicKey []byte // uncompressed P-256 point
}

// Encrypt a message for a subscription. The p256dh and auth values are the
// base64url encoded keys from the PushSubscription, padded or not.
//
// Every call uses a new salt and a new application server key.
func Encrypt(message []byte, p256dh, auth string, f Format) (*Message, error) {
	if len(message) == 0 {
		return nil, fmt.Errorf("%w: message cannot be blank", ErrInvalidArgument)
	}
	if p256dh == "" {
		return nil, fmt.Errorf("%w: p256dh cannot be blank", ErrInvalidArgument)
	}
	if auth == "" {
		return nil, fmt.Errorf("%w: auth cannot be blank", ErrInvalidArgument)
	}
	if len(message) > MaxMessageSize {
		return nil, fmt.Errorf(
			"%w: %w: message length of %v is too long for record size of %v",
			ErrInvalidArgument, ErrPayloadTooLarge, len(message), maxCiphertextSize)
	}

	authSecret, err := b64Decode(auth)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid auth in key: %w", ErrInvalidArgument, err)
	}
	if len(authSecret) != authLen {
		return nil, fmt.Errorf("%w: invalid auth in key: length %d, want %d",
			ErrInvalidArgument, len(authSecret), authLen)
	}

	userAgentPublicKey, err := b64Decode(p256dh)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid public key: %w", ErrInvalidArgument, err)
	}

	return encrypt(f, message, userAgentPublicKey, authSecret)
}

func encrypt(f Format, message, userAgentPublicKey, authSecret []byte) (*Message, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	a, err := agree(userAgentPublicKey)
	if err != nil {
		return nil, err
	}
	defer a.zero()

	s, err := deriveSecrets(f, a.sharedSecret, authSecret, a.serverPublicKey, a.clientPublicKey, salt)
	if err != nil {
		return nil, err
	}
	defer s.zero()

	ciphertext, err := seal(f, message, s.cek, s.nonce)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) > maxCiphertextSize {
		return nil, fmt.Errorf("%w: %w: ciphertext length of %v", ErrInvalidArgument, ErrPayloadTooLarge, len(ciphertext))
	}

	return &Message{
		Format:          f,
		Ciphertext:      ciphertext,
		Salt:            salt,
		ServerPublicKey: a.serverPublicKey,
	}, nil
}

// Body returns the request body. For aes128gcm this is the content coding
// header followed by the ciphertext, with the record size set to the
// ciphertext length. For aesgcm it is the bare ciphertext.
func (m *Message) Body() []byte {
	if m.Format == FormatAESGCM {
		return m.Ciphertext
	}
	body := make([]byte, 0, headerFixedLen+len(m.ServerPublicKey)+len(m.Ciphertext))
	body = appendHeader(body, m.Salt, uint32(len(m.Ciphertext)), m.ServerPublicKey)
	return append(body, m.Ciphertext...)
}

// Header returns the encoding headers the format requires.
func (m *Message) Header() http.Header {
	h := http.Header{}
	h.Set("Content-Encoding", m.Format.ContentEncoding())
	if m.Format == FormatAESGCM {
		h.Set("Encryption", "salt="+b64Encode(m.Salt))
		h.Set("Crypto-Key", "dh="+b64Encode(m.ServerPublicKey))
	}
	return h
}

// Decrypt the message as the user agent holding the subscription's private
// key and auth secret.
func (m *Message) Decrypt(userAgentKey *ecdh.PrivateKey, authSecret []byte) ([]byte, error) {
	a, err := receive(userAgentKey, m.ServerPublicKey)
	if err != nil {
		return nil, err
	}
	defer a.zero()

	s, err := deriveSecrets(m.Format, a.sharedSecret, authSecret, a.serverPublicKey, a.clientPublicKey, m.Salt)
	if err != nil {
		return nil, err
	}
	defer s.zero()

	return open(m.Format, m.Ciphertext, s.cek, s.nonce)
}

// Decrypt an aes128gcm body as the user agent.
func Decrypt(body []byte, userAgentKey *ecdh.PrivateKey, authSecret []byte) ([]byte, error) {
	m, err := ParseMessage(body)
	if err != nil {
		return nil, err
	}
	return m.Decrypt(userAgentKey, authSecret)
}

// ParseMessage parses an aes128gcm body.
func ParseMessage(body []byte) (*Message, error) {
	if len(body) < headerFixedLen {
		return nil, fmt.Errorf("%w: body shorter than header", ErrDecryption)
	}
	salt := body[:saltLen]
	recordSize := binary.BigEndian.Uint32(body[saltLen:])
	idLen := int(body[saltLen+4])
	rest := body[headerFixedLen:]
	if len(rest) < idLen {
		return nil, fmt.Errorf("%w: truncated key id", ErrDecryption)
	}
	keyID, ciphertext := rest[:idLen], rest[idLen:]
	if len(ciphertext) < tagLen+paddingLen || uint32(len(ciphertext)) > recordSize {
		return nil, fmt.Errorf("%w: ciphertext length %d does not fit record size %d",
			ErrDecryption, len(ciphertext), recordSize)
	}
	return &Message{
		Format:          FormatAES128GCM,
		Ciphertext:      ciphertext,
		Salt:            salt,
		ServerPublicKey: keyID,
	}, nil
}

// ReadMessage reconstructs a Message from a push request's headers and body,
// as a push service or user agent would receive it.
func ReadMessage(h http.Header, body []byte) (*Message, error) {
	f, err := ParseFormat(h.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	if f == FormatAES128GCM {
		return ParseMessage(body)
	}

	salt, err := headerParam(h.Get("Encryption"), "salt")
	if err != nil {
		return nil, err
	}
	dh, err := headerParam(h.Get("Crypto-Key"), "dh")
	if err != nil {
		return nil, err
	}
	return &Message{
		Format:          FormatAESGCM,
		Ciphertext:      body,
		Salt:            salt,
		ServerPublicKey: dh,
	}, nil
}

// headerParam finds name=value in a ; or , separated header and decodes the
// value.
func headerParam(value, name string) ([]byte, error) {
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ';' || r == ',' }) {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.EqualFold(k, name) {
			b, err := b64Decode(strings.Trim(v, `"`))
			if err != nil {
				return nil, fmt.Errorf("%w: invalid %s: %w", ErrDecryption, name, err)
			}
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: missing %s", ErrDecryption, name)
}
