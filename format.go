package webpush

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// Format selects the content encoding used for the payload and the matching
// VAPID header rendering.
type Format int

const (
	// FormatAES128GCM is the "aes128gcm" encoding of RFC 8188 and RFC 8291.
	// The salt and server key travel in a binary header in front of the
	// ciphertext.
	FormatAES128GCM Format = iota

	// FormatAESGCM is the legacy "aesgcm" draft encoding. The salt and server
	// key travel in the Encryption and Crypto-Key headers.
	FormatAESGCM
)

// ParseFormat parses a Content-Encoding name.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "aes128gcm":
		return FormatAES128GCM, nil
	case "aesgcm":
		return FormatAESGCM, nil
	}
	return 0, fmt.Errorf("%w: unknown format %q", ErrConfiguration, s)
}

// ContentEncoding returns the value for the Content-Encoding header.
func (f Format) ContentEncoding() string {
	if f == FormatAESGCM {
		return "aesgcm"
	}
	return "aes128gcm"
}

func (f Format) String() string {
	return f.ContentEncoding()
}

// UnmarshalText allows a Format to be read from configuration files.
func (f *Format) UnmarshalText(text []byte) error {
	v, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// MarshalText is the inverse of UnmarshalText.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.ContentEncoding()), nil
}

var (
	webPushInfo              = []byte("WebPush: info\x00")
	contentEncryptionKeyInfo = []byte("Content-Encoding: aes128gcm\x00")
	nonceEncodingInfo        = []byte("Content-Encoding: nonce\x00")

	legacyAuthInfo = []byte("Content-Encoding: auth\x00")
	legacyCurve    = []byte("P-256")
)

// authInfo is the info used to derive the PRK from the ECDH shared secret.
func (f Format) authInfo(serverKey, clientKey []byte) []byte {
	if f == FormatAESGCM {
		return legacyAuthInfo
	}
	return slices.Concat(webPushInfo, clientKey, serverKey)
}

func (f Format) cekInfo(serverKey, clientKey []byte) []byte {
	if f == FormatAESGCM {
		return legacyInfo("aesgcm", serverKey, clientKey)
	}
	return contentEncryptionKeyInfo
}

func (f Format) nonceInfo(serverKey, clientKey []byte) []byte {
	if f == FormatAESGCM {
		return legacyInfo("nonce", serverKey, clientKey)
	}
	return nonceEncodingInfo
}

// legacyInfo builds
//
//	"Content-Encoding: " || kind || 0x00 || "P-256" || context
//
// where context is
//
//	0x00 || u16(len(client)) || client || u16(len(server)) || server
func legacyInfo(kind string, serverKey, clientKey []byte) []byte {
	info := make([]byte, 0, 18+len(kind)+1+len(legacyCurve)+5+len(clientKey)+len(serverKey))
	info = append(info, "Content-Encoding: "...)
	info = append(info, kind...)
	info = append(info, 0)
	info = append(info, legacyCurve...)
	info = append(info, 0)
	info = binary.BigEndian.AppendUint16(info, uint16(len(clientKey)))
	info = append(info, clientKey...)
	info = binary.BigEndian.AppendUint16(info, uint16(len(serverKey)))
	info = append(info, serverKey...)
	return info
}
