// Package webpush supports Generic Event Delivery Using HTTP Push.
//
// Payloads are encrypted in either the "aes128gcm" content coding of RFC 8291,
// or the older "aesgcm" draft coding still expected by some push services.
// Requests are authenticated with VAPID, and push service responses are
// classified into errors describing the state of the subscription.
//
// Generic Event Delivery Using HTTP Push
// https://www.rfc-editor.org/rfc/rfc8030.html
//
// Message Encryption for Web Push
// https://www.rfc-editor.org/rfc/rfc8291.html
//
// Voluntary Application Server Identification (VAPID) for Web Push
// https://www.rfc-editor.org/rfc/rfc8292
//
// Encrypted Content-Encoding for HTTP:
// https://www.rfc-editor.org/rfc/rfc8188
//
// Encrypted Content-Encoding for HTTP, draft 03 (aesgcm):
// https://datatracker.ietf.org/doc/html/draft-ietf-httpbis-encryption-encoding-03
//
// MDN Push API:
// https://developer.mozilla.org/en-US/docs/Web/API/Push_API
package webpush

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTTL is used when Config.TTL is zero: four weeks.
const DefaultTTL = 4 * 7 * 24 * time.Hour

// Urgency directly impacts battery life.
//
// https://www.rfc-editor.org/rfc/rfc8030.html#section-5.3
type Urgency string

const (
	// UrgencyVeryLow targets "On power and Wi-Fi".
	UrgencyVeryLow Urgency = "very-low"
	// UrgencyLow targets "On either power or Wi-Fi".
	UrgencyLow Urgency = "low"
	// UrgencyNormal targets "On neither power nor Wi-Fi".
	UrgencyNormal Urgency = "normal"
	// UrgencyHigh targets any state including "Low battery".
	UrgencyHigh Urgency = "high"
)

func (u Urgency) isValid() bool {
	switch u {
	case UrgencyVeryLow, UrgencyLow, UrgencyNormal, UrgencyHigh:
		return true
	}
	return false
}

// Config specifies required and optional aspects for sending a Push Notification.
type Config struct {
	Client  *http.Client  // Optional http.Client, defaults to http.DefaultClient.
	Format  Format        // Optional content coding, defaults to aes128gcm.
	VAPID   *VAPID        // VAPID credentials, required unless using APIKey.
	APIKey  string        // Optional legacy GCM server key, only sent to GCM endpoints.
	TTL     time.Duration // Optional TTL on the endpoint POST request (rounded to seconds), defaults to four weeks.
	Topic   string        // Optional Topic to collapse pending messages.
	Urgency Urgency       // Optional Urgency for message priority.

	// SuppressErrors makes Push log failures and report false instead of
	// returning them. Send is unaffected.
	SuppressErrors bool

	Logger logrus.FieldLogger // Optional, defaults to the logrus standard logger.
}

func (c *Config) client() *http.Client {
	if c.Client == nil {
		return http.DefaultClient
	}
	return c.Client
}

func (c *Config) logger() logrus.FieldLogger {
	if c.Logger == nil {
		return logrus.StandardLogger()
	}
	return c.Logger
}

func (c *Config) ttl() time.Duration {
	if c.TTL == 0 {
		return DefaultTTL
	}
	return c.TTL
}

func (c *Config) validate() error {
	if c.Format != FormatAES128GCM && c.Format != FormatAESGCM {
		return fmt.Errorf("%w: unknown format %d", ErrConfiguration, int(c.Format))
	}
	if c.TTL < 0 {
		return fmt.Errorf("%w: negative ttl", ErrConfiguration)
	}
	if c.Urgency != "" && !c.Urgency.isValid() {
		return fmt.Errorf("%w: invalid urgency %q", ErrConfiguration, c.Urgency)
	}
	if c.VAPID != nil {
		return c.VAPID.validate()
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: missing vapid or api key", ErrConfiguration)
	}
	return nil
}

// Keys are the Base64 encoded values from the User Agent.
type Keys struct {
	Auth   string `json:"auth"`
	P256dh string `json:"p256dh"`
}

// Subscription represents a PushSubscription from the User Agent.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     Keys   `json:"keys"`
}

// Send a Push Notification to a Subscription.
//
// A non-2xx reply is returned as a *ResponseError together with the
// response. Errors from the http.Client are returned as is.
func Send(ctx context.Context, message []byte, s *Subscription, conf *Config) (*http.Response, error) {
	req, err := NewRequest(ctx, message, s, conf)
	if err != nil {
		return nil, err
	}

	log := conf.logger().WithFields(logrus.Fields{
		"host":     req.URL.Host,
		"encoding": req.Header.Get("Content-Encoding"),
	})
	log.Debug("webpush: sending notification")

	resp, err := conf.client().Do(req)
	if err != nil {
		return nil, err
	}

	if err := CheckResponse(resp); err != nil {
		var re *ResponseError
		if errors.As(err, &re) {
			log.WithFields(logrus.Fields{
				"status": re.StatusCode,
				"kind":   re.Kind.String(),
			}).Debug("webpush: push service rejected notification")
		}
		return resp, err
	}
	log.WithField("status", resp.StatusCode).Debug("webpush: notification accepted")
	return resp, nil
}

// Push sends a Push Notification and reports whether the push service
// accepted it. With Config.SuppressErrors set every failure is logged and
// reported as false with a nil error.
func Push(ctx context.Context, message []byte, s *Subscription, conf *Config) (bool, error) {
	resp, err := Send(ctx, message, s, conf)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if conf.SuppressErrors {
			conf.logger().WithError(err).Warn("webpush: notification not delivered")
			return false, nil
		}
		return false, err
	}
	return true, nil
}
