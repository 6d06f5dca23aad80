package commands

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/pushwire/webpush"
)

const (
	envPrefix     = "WEBPUSH_"
	defaultListen = ":8080"
)

// Config is the webpush configuration file. Every key is optional, but
// sending needs either VAPID keys or an API key.
type Config struct {
	VAPID          VAPIDConfig   `yaml:"vapid,omitempty"`
	APIKey         string        `yaml:"api_key,omitempty"`
	Format         string        `yaml:"format,omitempty" validate:"omitempty,oneof=aes128gcm aesgcm"`
	TTL            time.Duration `yaml:"ttl,omitempty" validate:"gte=0"`
	Topic          string        `yaml:"topic,omitempty"`
	Urgency        string        `yaml:"urgency,omitempty" validate:"omitempty,oneof=very-low low normal high"`
	SuppressErrors bool          `yaml:"suppress_errors,omitempty"`

	Listen      string `yaml:"listen,omitempty"`
	TLSCertFile string `yaml:"tls_cert_file,omitempty" validate:"required_with=TLSKeyFile"`
	TLSKeyFile  string `yaml:"tls_key_file,omitempty" validate:"required_with=TLSCertFile"`
}

// VAPIDConfig holds the application server keys, base64url encoded.
type VAPIDConfig struct {
	PublicKey  string        `yaml:"public_key,omitempty"`
	PrivateKey string        `yaml:"private_key,omitempty" validate:"required_with=PublicKey Subject"`
	Subject    string        `yaml:"subject,omitempty" validate:"required_with=PrivateKey"`
	Expiration time.Duration `yaml:"expiration,omitempty" validate:"gte=0"`
}

// LoadConfig reads the YAML file at path, if any, then applies WEBPUSH_*
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	c := &Config{Listen: defaultListen}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("unmarshal config file: %w", err)
		}
	}
	c.applyEnv()

	if err := validator.New().Struct(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	for name, dst := range map[string]*string{
		"VAPID_PUBLIC_KEY":  &c.VAPID.PublicKey,
		"VAPID_PRIVATE_KEY": &c.VAPID.PrivateKey,
		"SUBJECT":           &c.VAPID.Subject,
		"API_KEY":           &c.APIKey,
		"FORMAT":            &c.Format,
		"LISTEN":            &c.Listen,
		"TLS_CERT_FILE":     &c.TLSCertFile,
		"TLS_KEY_FILE":      &c.TLSKeyFile,
	} {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
}

// WebPush converts the file configuration into a webpush.Config.
func (c *Config) WebPush(log logrus.FieldLogger) (*webpush.Config, error) {
	f, err := webpush.ParseFormat(c.Format)
	if err != nil {
		return nil, err
	}
	conf := &webpush.Config{
		Format:         f,
		APIKey:         c.APIKey,
		TTL:            c.TTL,
		Topic:          c.Topic,
		Urgency:        webpush.Urgency(c.Urgency),
		SuppressErrors: c.SuppressErrors,
		Logger:         log,
	}

	if c.VAPID.PrivateKey != "" {
		var key *ecdsa.PrivateKey
		if c.VAPID.PublicKey != "" {
			key, err = webpush.ParseVAPIDKeys(c.VAPID.PublicKey, c.VAPID.PrivateKey)
		} else {
			key, err = webpush.ParseVAPIDKey(c.VAPID.PrivateKey)
		}
		if err != nil {
			return nil, err
		}
		conf.VAPID = &webpush.VAPID{
			Key:        key,
			Subject:    c.VAPID.Subject,
			Expiration: c.VAPID.Expiration,
		}
	}
	return conf, nil
}
