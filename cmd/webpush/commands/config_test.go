package commands

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushwire/webpush"
)

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webpush.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
vapid:
  private_key: abc
  subject: mailto:ops@example.com
  expiration: 12h
format: aesgcm
ttl: 1h30m
topic: news
urgency: high
suppress_errors: true
`), 0o600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", c.VAPID.PrivateKey)
	assert.Equal(t, "mailto:ops@example.com", c.VAPID.Subject)
	assert.Equal(t, 12*time.Hour, c.VAPID.Expiration)
	assert.Equal(t, "aesgcm", c.Format)
	assert.Equal(t, 90*time.Minute, c.TTL)
	assert.Equal(t, "news", c.Topic)
	assert.Equal(t, "high", c.Urgency)
	assert.True(t, c.SuppressErrors)
	assert.Equal(t, defaultListen, c.Listen)
}

func TestLoadConfigWithoutFile(t *testing.T) {
	c, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultListen, c.Listen)
	assert.Empty(t, c.VAPID.PrivateKey)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, &Config{
		VAPID:  VAPIDConfig{PrivateKey: "from-file", Subject: "mailto:file@example.com"},
		Listen: ":9000",
	})
	t.Setenv("WEBPUSH_VAPID_PRIVATE_KEY", "from-env")
	t.Setenv("WEBPUSH_SUBJECT", "https://example.com")
	t.Setenv("WEBPUSH_LISTEN", "127.0.0.1:8443")

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.VAPID.PrivateKey)
	assert.Equal(t, "https://example.com", c.VAPID.Subject)
	assert.Equal(t, "127.0.0.1:8443", c.Listen)
}

func TestLoadConfigInvalid(t *testing.T) {
	cases := map[string]string{
		"format":       "format: aes256gcm\n",
		"urgency":      "urgency: now\n",
		"ttl":          "ttl: -1s\n",
		"subject":      "vapid:\n  private_key: abc\n",
		"private key":  "vapid:\n  subject: mailto:a@example.com\n",
		"tls":          "tls_cert_file: cert.pem\n",
		"not yaml":     "vapid: [\n",
		"bad duration": "ttl: soon\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "webpush.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestConfigWebPush(t *testing.T) {
	c := vapidConfig(t)
	c.Format = "aesgcm"
	c.TTL = time.Minute
	c.Urgency = "low"

	conf, err := c.WebPush(quietLogger())
	require.NoError(t, err)
	assert.Equal(t, webpush.FormatAESGCM, conf.Format)
	assert.Equal(t, time.Minute, conf.TTL)
	assert.Equal(t, webpush.UrgencyLow, conf.Urgency)
	require.NotNil(t, conf.VAPID)
	assert.Equal(t, "mailto:ops@example.com", conf.VAPID.Subject)

	public, _, err := webpush.EncodeVAPIDKeys(conf.VAPID.Key)
	require.NoError(t, err)
	assert.Equal(t, c.VAPID.PublicKey, public)
}

func TestConfigWebPushPrivateKeyOnly(t *testing.T) {
	c := vapidConfig(t)
	c.VAPID.PublicKey = ""
	conf, err := c.WebPush(quietLogger())
	require.NoError(t, err)
	require.NotNil(t, conf.VAPID)
}

func TestConfigWebPushKeyMismatch(t *testing.T) {
	c := vapidConfig(t)
	other, _ := generateKeys(t)
	c.VAPID.PublicKey = other
	_, err := c.WebPush(quietLogger())
	assert.True(t, errors.Is(err, webpush.ErrConfiguration))
}

func TestConfigWebPushAPIKeyOnly(t *testing.T) {
	conf, err := (&Config{APIKey: "server-key"}).WebPush(quietLogger())
	require.NoError(t, err)
	assert.Nil(t, conf.VAPID)
	assert.Equal(t, "server-key", conf.APIKey)
}
