package webpush

import (
	"bytes"
	"crypto/ecdh"
	"testing"

	"github.com/daaku/ensure"
)

// Example from RFC 8291 section 5.
var (
	rfcAppServerPrivate = "yfWPiYE-n46HLnH0KqZOF1fJJU3MYrct3AELtAQ-oRw"
	rfcAppServerPublic  = "BP4z9KsN6nGRTbVYI_c7VJSPQTBtkgcy27mlmlMoZIIgDll6e3vCYLocInmYWAmS6TlzAC8wEqKK6PBru3jl7A8"
	rfcUserAgentPublic  = "BCVxsr7N_eNgVRqvHtD0zTZsEc6-VV-JvLexhqUzORcxaOzi6-AYWXvTBHm4bjyPjs7Vd8pZGH6SRpkNtoIAiw4"
	rfcSalt             = "DGv6ra1nlYgDCS1FRnbzlw"
	rfcAuthSecret       = "BTBZMqHH6r4Tts7J_aSIgg"
	rfcECDHSecret       = "kyrL1jIIOHEzg3sM2ZWRHDRB62YACZhhSlknJ672kSs"
	rfcIKM              = "S4lYMb_L0FxCeq0WhDx813KgSYqU26kOyzWUdsXYyrg"
	rfcCEK              = "oIhVW04MRdy2XN9CiKLxTg"
	rfcNonce            = "4h_95klXJ5E_qnoN"
)

func TestDeriveSecretsRFC8291(t *testing.T) {
	appServerKey, err := ecdh.P256().NewPrivateKey(must(b64Decode(rfcAppServerPrivate)))
	ensure.Nil(t, err)
	ensure.DeepEqual(t, b64Encode(appServerKey.PublicKey().Bytes()), rfcAppServerPublic)

	userAgentKey, err := ecdh.P256().NewPublicKey(must(b64Decode(rfcUserAgentPublic)))
	ensure.Nil(t, err)
	sharedSecret, err := appServerKey.ECDH(userAgentKey)
	ensure.Nil(t, err)
	ensure.DeepEqual(t, b64Encode(sharedSecret), rfcECDHSecret)

	s, err := deriveSecrets(
		FormatAES128GCM,
		sharedSecret,
		must(b64Decode(rfcAuthSecret)),
		appServerKey.PublicKey().Bytes(),
		userAgentKey.Bytes(),
		must(b64Decode(rfcSalt)),
	)
	ensure.Nil(t, err)
	ensure.DeepEqual(t, b64Encode(s.prk), rfcIKM)
	ensure.DeepEqual(t, b64Encode(s.cek), rfcCEK)
	ensure.DeepEqual(t, b64Encode(s.nonce), rfcNonce)
}

func sequential(n int, start byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

func TestDeriveSecretsLengthsAndDeterminism(t *testing.T) {
	shared := sequential(32, 0)
	auth := sequential(authLen, 32)
	server := append([]byte{4}, sequential(64, 64)...)
	client := append([]byte{4}, sequential(64, 128)...)
	salt := sequential(saltLen, 200)

	for _, f := range []Format{FormatAES128GCM, FormatAESGCM} {
		t.Run(f.String(), func(t *testing.T) {
			a, err := deriveSecrets(f, shared, auth, server, client, salt)
			ensure.Nil(t, err)
			ensure.DeepEqual(t, len(a.prk), prkLen)
			ensure.DeepEqual(t, len(a.cek), cekLen)
			ensure.DeepEqual(t, len(a.nonce), nonceLen)

			b, err := deriveSecrets(f, shared, auth, server, client, salt)
			ensure.Nil(t, err)
			ensure.DeepEqual(t, a, b)

			otherSalt := bytes.Clone(salt)
			otherSalt[0] ^= 0xff
			c, err := deriveSecrets(f, shared, auth, server, client, otherSalt)
			ensure.Nil(t, err)
			ensure.DeepEqual(t, a.prk, c.prk)
			ensure.False(t, bytes.Equal(a.cek, c.cek), "salt must change the key")
			ensure.False(t, bytes.Equal(a.nonce, c.nonce), "salt must change the nonce")

			otherAuth := bytes.Clone(auth)
			otherAuth[0] ^= 0xff
			d, err := deriveSecrets(f, shared, otherAuth, server, client, salt)
			ensure.Nil(t, err)
			ensure.False(t, bytes.Equal(a.prk, d.prk), "auth must change the prk")
		})
	}
}

func TestDeriveSecretsFormatsDiffer(t *testing.T) {
	shared := sequential(32, 0)
	auth := sequential(authLen, 32)
	server := append([]byte{4}, sequential(64, 64)...)
	client := append([]byte{4}, sequential(64, 128)...)
	salt := sequential(saltLen, 200)

	current, err := deriveSecrets(FormatAES128GCM, shared, auth, server, client, salt)
	ensure.Nil(t, err)
	legacy, err := deriveSecrets(FormatAESGCM, shared, auth, server, client, salt)
	ensure.Nil(t, err)
	ensure.False(t, bytes.Equal(current.prk, legacy.prk))
	ensure.False(t, bytes.Equal(current.cek, legacy.cek))
}

func TestAuthInfo(t *testing.T) {
	server := []byte{4, 1}
	client := []byte{4, 2}
	ensure.DeepEqual(t, FormatAES128GCM.authInfo(server, client), []byte("WebPush: info\x00\x04\x02\x04\x01"))
	ensure.DeepEqual(t, FormatAESGCM.authInfo(server, client), []byte("Content-Encoding: auth\x00"))
}

func TestLegacyInfo(t *testing.T) {
	server := []byte{4, 1}
	client := []byte{4, 2, 3}
	ensure.DeepEqual(t,
		FormatAESGCM.cekInfo(server, client),
		[]byte("Content-Encoding: aesgcm\x00P-256\x00\x00\x03\x04\x02\x03\x00\x02\x04\x01"))
	ensure.DeepEqual(t,
		FormatAESGCM.nonceInfo(server, client),
		[]byte("Content-Encoding: nonce\x00P-256\x00\x00\x03\x04\x02\x03\x00\x02\x04\x01"))
	ensure.DeepEqual(t, FormatAES128GCM.cekInfo(server, client), []byte("Content-Encoding: aes128gcm\x00"))
	ensure.DeepEqual(t, FormatAES128GCM.nonceInfo(server, client), []byte("Content-Encoding: nonce\x00"))
}

func TestSecretsZero(t *testing.T) {
	s := &secrets{prk: sequential(prkLen, 1), cek: sequential(cekLen, 1), nonce: sequential(nonceLen, 1)}
	s.zero()
	ensure.DeepEqual(t, s.prk, make([]byte, prkLen))
	ensure.DeepEqual(t, s.cek, make([]byte, cekLen))
	ensure.DeepEqual(t, s.nonce, make([]byte, nonceLen))
}
