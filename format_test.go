package webpush

import (
	"errors"
	"testing"

	"github.com/daaku/ensure"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"":          FormatAES128GCM,
		"aes128gcm": FormatAES128GCM,
		"aesgcm":    FormatAESGCM,
	} {
		f, err := ParseFormat(in)
		ensure.Nil(t, err)
		ensure.DeepEqual(t, f, want)
	}
	_, err := ParseFormat("aes256gcm")
	ensure.True(t, errors.Is(err, ErrConfiguration))
}

func TestFormatText(t *testing.T) {
	var f Format
	ensure.Nil(t, f.UnmarshalText([]byte("aesgcm")))
	ensure.DeepEqual(t, f, FormatAESGCM)
	text, err := f.MarshalText()
	ensure.Nil(t, err)
	ensure.DeepEqual(t, string(text), "aesgcm")
	ensure.DeepEqual(t, FormatAES128GCM.String(), "aes128gcm")
}
