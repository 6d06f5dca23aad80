package commands

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pushwire/webpush"
)

type delivery struct {
	header    http.Header
	plaintext []byte
	err       error
}

// pushService is a push service endpoint that decrypts what it receives
// with the user agent's keys.
type pushService struct {
	*httptest.Server
	key        *ecdh.PrivateKey
	auth       []byte
	status     int
	deliveries chan delivery
}

func newPushService(t *testing.T, status int) *pushService {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	ps := &pushService{key: key, auth: auth, status: status, deliveries: make(chan delivery, 1)}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		d := delivery{header: r.Header}
		if len(body) > 0 {
			var m *webpush.Message
			m, d.err = webpush.ReadMessage(r.Header, body)
			if d.err == nil {
				d.plaintext, d.err = m.Decrypt(ps.key, ps.auth)
			}
		}
		ps.deliveries <- d
		w.WriteHeader(ps.status)
	}))
	t.Cleanup(ps.Close)
	return ps
}

func (ps *pushService) subscription() *webpush.Subscription {
	return &webpush.Subscription{
		Endpoint: ps.URL + "/push/abc",
		Keys: webpush.Keys{
			Auth:   base64.RawURLEncoding.EncodeToString(ps.auth),
			P256dh: base64.RawURLEncoding.EncodeToString(ps.key.PublicKey().Bytes()),
		},
	}
}

func (ps *pushService) writeSubscription(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(ps.subscription())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "subscription.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func generateKeys(t *testing.T) (public, private string) {
	t.Helper()
	encoded, err := webpush.GenerateVAPIDKey()
	require.NoError(t, err)
	key, err := webpush.ParseVAPIDKey(encoded)
	require.NoError(t, err)
	public, private, err = webpush.EncodeVAPIDKeys(key)
	require.NoError(t, err)
	return public, private
}

func writeConfig(t *testing.T, c *Config) string {
	t.Helper()
	data, err := yaml.Marshal(c)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "webpush.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func vapidConfig(t *testing.T) *Config {
	public, private := generateKeys(t)
	return &Config{VAPID: VAPIDConfig{
		PublicKey:  public,
		PrivateKey: private,
		Subject:    "mailto:ops@example.com",
	}}
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func quietLogger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}
