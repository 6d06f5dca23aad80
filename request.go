package webpush

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	gcmURL     = "https://android.googleapis.com/gcm/send"
	tempGCMURL = "https://gcm-http.googleapis.com/gcm"
)

// rewriteEndpoint moves deprecated GCM endpoints to the host still accepting
// them.
func rewriteEndpoint(endpoint string) string {
	if strings.HasPrefix(endpoint, gcmURL) {
		return tempGCMURL + strings.TrimPrefix(endpoint, gcmURL)
	}
	return endpoint
}

func isGCM(endpoint string) bool {
	return strings.HasPrefix(endpoint, tempGCMURL)
}

// NewRequest builds the push request without sending it. The message is
// encrypted for the subscription, unless it is empty in which case the
// request has no body and no encoding headers.
//
// Configuration and argument errors are reported here, before any network
// activity.
func NewRequest(ctx context.Context, message []byte, s *Subscription, conf *Config) (*http.Request, error) {
	if err := conf.validate(); err != nil {
		return nil, err
	}
	if s == nil || s.Endpoint == "" {
		return nil, fmt.Errorf("%w: invalid subscription, missing endpoint", ErrInvalidArgument)
	}
	endpoint := rewriteEndpoint(s.Endpoint)
	origin, err := audience(endpoint)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Content-Type", "application/octet-stream")
	header.Set("TTL", strconv.Itoa(int(conf.ttl().Seconds())))
	if conf.Topic != "" {
		header.Set("Topic", conf.Topic)
	}
	if conf.Urgency != "" {
		header.Set("Urgency", string(conf.Urgency))
	}

	var body []byte
	var cryptoKey []string
	if len(message) > 0 {
		if s.Keys.Auth == "" || s.Keys.P256dh == "" {
			return nil, fmt.Errorf(
				"%w: invalid subscription, missing endpoint or keys", ErrInvalidArgument)
		}
		m, err := Encrypt(message, s.Keys.P256dh, s.Keys.Auth, conf.Format)
		if err != nil {
			return nil, err
		}
		body = m.Body()
		mh := m.Header()
		header.Set("Content-Encoding", mh.Get("Content-Encoding"))
		if v := mh.Get("Encryption"); v != "" {
			header.Set("Encryption", v)
		}
		cryptoKey = append(cryptoKey, mh.Get("Crypto-Key"))
	}

	switch {
	case conf.VAPID != nil:
		vh, err := conf.VAPID.Header(conf.Format, origin)
		if err != nil {
			return nil, err
		}
		header.Set("Authorization", vh.Get("Authorization"))
		cryptoKey = append(cryptoKey, vh.Get("Crypto-Key"))
	case isGCM(endpoint):
		header.Set("Authorization", "key="+conf.APIKey)
	}
	if v := mergeCryptoKey(cryptoKey...); v != "" {
		header.Set("Crypto-Key", v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = header
	return req, nil
}
