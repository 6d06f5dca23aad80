package webpush

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultVAPIDExpiration is used when VAPID.Expiration is zero.
const DefaultVAPIDExpiration = 24 * time.Hour

var structValidator = validator.New()

// GenerateVAPIDKey will create a private VAPID key in Base64 Raw URL Encoding.
// Generate a key and store it in your configuration. Use ParseVAPIDKey on
// application startup to parse it for use in the Config.
func GenerateVAPIDKey() (string, error) {
	private, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", err
	}
	privateKeyBytes, err := private.Bytes()
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(privateKeyBytes), nil
}

// ParseVAPIDKey parses a private key encoded in Base64 Raw URL Encoding.
// Use GenerateVAPIDKey to generate a key for use in your application.
func ParseVAPIDKey(privateKey string) (*ecdsa.PrivateKey, error) {
	raw, err := b64Decode(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid vapid private key: %w", ErrConfiguration, err)
	}
	key, err := ecdsa.ParseRawPrivateKey(elliptic.P256(), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid vapid private key: %w", ErrConfiguration, err)
	}
	return key, nil
}

// ParseVAPIDKeys parses a stored key pair: the 65 byte uncompressed public
// key and the 32 byte private scalar, both unpadded base64url. The public key
// must belong to the private key.
func ParseVAPIDKeys(publicKey, privateKey string) (*ecdsa.PrivateKey, error) {
	key, err := ParseVAPIDKey(privateKey)
	if err != nil {
		return nil, err
	}
	raw, err := b64Decode(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid vapid public key: %w", ErrConfiguration, err)
	}
	pub, err := ecdsa.ParseUncompressedPublicKey(elliptic.P256(), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid vapid public key: %w", ErrConfiguration, err)
	}
	if !pub.Equal(&key.PublicKey) {
		return nil, fmt.Errorf("%w: vapid public key does not match private key", ErrConfiguration)
	}
	return key, nil
}

// EncodeVAPIDKeys returns the public and private halves of key in the form
// ParseVAPIDKeys accepts.
func EncodeVAPIDKeys(key *ecdsa.PrivateKey) (publicKey, privateKey string, err error) {
	pub, err := key.PublicKey.Bytes()
	if err != nil {
		return "", "", err
	}
	priv, err := key.Bytes()
	if err != nil {
		return "", "", err
	}
	return b64Encode(pub), b64Encode(priv), nil
}

// VAPID identifies the application server to the push service. It is
// read-only once built and may be shared between goroutines.
type VAPID struct {
	// Required VAPID Private Key.
	Key *ecdsa.PrivateKey `validate:"required"`
	// Required Subject, https URL or mailto: email address. Google & Firefox
	// allow for an empty Subject, but Apple doesn't.
	Subject string `validate:"required,startswith=https:|startswith=mailto:"`
	// Optional lifetime of the signed token, defaults to 24 hours.
	Expiration time.Duration `validate:"gte=0"`
	// Optional clock, defaults to time.Now.
	Now func() time.Time
}

func (v *VAPID) validate() error {
	if err := structValidator.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: invalid vapid %s", ErrConfiguration, strings.ToLower(verrs[0].Field()))
		}
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}

func (v *VAPID) expiration() time.Time {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	d := v.Expiration
	if d == 0 {
		d = DefaultVAPIDExpiration
	}
	return now().Add(d)
}

// token signs the ES256 JWT asserting aud, exp and sub.
func (v *VAPID) token(audience string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"aud": audience,
		"exp": v.expiration().Unix(),
		"sub": v.Subject,
	})
	return token.SignedString(v.Key)
}

// Header returns the headers authenticating a request to audience, the
// scheme://host of the push endpoint.
//
//	aes128gcm: Authorization: vapid t=<jwt>,k=<public key>
//	aesgcm:    Authorization: WebPush <jwt>
//	           Crypto-Key: p256ecdsa=<public key>
func (v *VAPID) Header(f Format, audience string) (http.Header, error) {
	if err := v.validate(); err != nil {
		return nil, err
	}
	jwtString, err := v.token(audience)
	if err != nil {
		return nil, err
	}
	publicKeyBytes, err := v.Key.PublicKey.Bytes()
	if err != nil {
		return nil, err
	}
	encodedPublicKey := b64Encode(publicKeyBytes)

	h := http.Header{}
	if f == FormatAESGCM {
		h.Set("Authorization", "WebPush "+jwtString)
		h.Set("Crypto-Key", "p256ecdsa="+encodedPublicKey)
	} else {
		h.Set("Authorization", "vapid t="+jwtString+",k="+encodedPublicKey)
	}
	return h, nil
}

// audience returns the origin of a push endpoint.
func audience(endpoint string) (string, error) {
	subURL, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: invalid endpoint: %w", ErrInvalidArgument, err)
	}
	if subURL.Scheme == "" || subURL.Host == "" {
		return "", fmt.Errorf("%w: invalid endpoint: %q", ErrInvalidArgument, endpoint)
	}
	return subURL.Scheme + "://" + subURL.Host, nil
}

// mergeCryptoKey joins Crypto-Key values with ';' as the aesgcm draft
// requires.
func mergeCryptoKey(values ...string) string {
	var b bytes.Buffer
	for _, v := range values {
		if v == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(';')
		}
		b.WriteString(v)
	}
	return b.String()
}
