package webpush

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Errors raised before any request is made.
var (
	// ErrConfiguration reports malformed VAPID keys or a missing required
	// configuration value.
	ErrConfiguration = errors.New("webpush: configuration error")

	// ErrInvalidArgument reports a blank or malformed message, key or
	// subscription.
	ErrInvalidArgument = errors.New("webpush: invalid argument")

	// ErrDecryption reports a payload that failed authentication or carried
	// an unexpected padding delimiter.
	ErrDecryption = errors.New("webpush: decryption error")
)

// Errors matched by a *ResponseError, for use with errors.Is.
var (
	// ErrResponse matches every *ResponseError.
	ErrResponse = errors.New("webpush: unexpected response")

	// ErrInvalidSubscription means the subscription is unknown to the push
	// service and should be removed.
	ErrInvalidSubscription = errors.New("webpush: invalid subscription")

	// ErrExpiredSubscription means the subscription is gone and should be
	// removed.
	ErrExpiredSubscription = errors.New("webpush: expired subscription")

	// ErrUnauthorized means the push service rejected the VAPID credentials.
	ErrUnauthorized = errors.New("webpush: unauthorized")

	// ErrPayloadTooLarge is returned for an oversized payload, either before
	// sending or when the push service replies 413.
	ErrPayloadTooLarge = errors.New("webpush: payload too large")

	// ErrTooManyRequests means the push service is rate limiting the sender.
	ErrTooManyRequests = errors.New("webpush: too many requests")

	// ErrPushService means the push service failed with a 5xx status.
	ErrPushService = errors.New("webpush: push service error")
)

// Kind is the classification of a push service response.
type Kind int

const (
	KindSuccess Kind = iota
	KindResponseError
	KindInvalidSubscription
	KindExpiredSubscription
	KindUnauthorized
	KindPayloadTooLarge
	KindTooManyRequests
	KindPushServiceError
)

var kindNames = [...]string{
	KindSuccess:             "success",
	KindResponseError:       "response error",
	KindInvalidSubscription: "invalid subscription",
	KindExpiredSubscription: "expired subscription",
	KindUnauthorized:        "unauthorized",
	KindPayloadTooLarge:     "payload too large",
	KindTooManyRequests:     "too many requests",
	KindPushServiceError:    "push service error",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidSubscription:
		return ErrInvalidSubscription
	case KindExpiredSubscription:
		return ErrExpiredSubscription
	case KindUnauthorized:
		return ErrUnauthorized
	case KindPayloadTooLarge:
		return ErrPayloadTooLarge
	case KindTooManyRequests:
		return ErrTooManyRequests
	case KindPushServiceError:
		return ErrPushService
	}
	return nil
}

// Classify maps a push service status code, and for 400 the reason phrase,
// to a Kind.
func Classify(statusCode int, statusMessage string) Kind {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return KindSuccess
	case statusCode >= 500 && statusCode < 600:
		return KindPushServiceError
	}
	switch statusCode {
	case http.StatusNotFound:
		return KindInvalidSubscription
	case http.StatusGone:
		return KindExpiredSubscription
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusBadRequest:
		if statusMessage == "UnauthorizedRegistration" {
			return KindUnauthorized
		}
	case http.StatusNotAcceptable, http.StatusTooManyRequests:
		return KindTooManyRequests
	case http.StatusRequestEntityTooLarge:
		return KindPayloadTooLarge
	}
	return KindResponseError
}

// ResponseError is a non-2xx reply from the push service.
type ResponseError struct {
	Kind       Kind
	StatusCode int
	Status     string // reason phrase, without the status code
	Body       string
}

func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("webpush: %s: status %d", e.Kind, e.StatusCode)
	if e.Status != "" {
		msg += " " + e.Status
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is reports whether target is ErrResponse or the sentinel for e.Kind.
func (e *ResponseError) Is(target error) bool {
	if target == ErrResponse {
		return true
	}
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 64 << 10

// CheckResponse returns nil for a 2xx response and a *ResponseError
// otherwise. The body of a failed response is read into the error and
// replaced so the caller may read it again.
func CheckResponse(resp *http.Response) error {
	status := reasonPhrase(resp)
	kind := Classify(resp.StatusCode, status)
	if kind == KindSuccess {
		return nil
	}
	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		if err != nil {
			return err
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	return &ResponseError{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		Status:     status,
		Body:       string(body),
	}
}

// reasonPhrase strips the leading code from resp.Status, "400 Foo" → "Foo".
func reasonPhrase(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, code))
}
