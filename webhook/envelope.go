package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimestampFormat is the envelope timestamp layout: ISO-8601 UTC with
// microseconds.
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

// SignaturePrefix precedes the hex digest in the X-Webhook-Signature
// header.
const SignaturePrefix = "sha256="

// Envelope is the JSON body of every webhook request.
type Envelope struct {
	Event     string          `json:"event"`
	Timestamp string          `json:"timestamp"`
	WebhookID string          `json:"webhook_id"`
	Data      json.RawMessage `json:"data"`
}

// NewEnvelope builds the envelope sent to subscriberID for one event.
func NewEnvelope(event, subscriberID string, data json.RawMessage, at time.Time) Envelope {
	return Envelope{
		Event:     event,
		Timestamp: at.UTC().Format(TimestampFormat),
		WebhookID: subscriberID,
		Data:      data,
	}
}

// Encode returns the canonical JSON encoding of the envelope. These are the
// exact bytes that are signed and sent.
func (e Envelope) Encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope for %s: %w", e.Event, err)
	}
	return body, nil
}

// Sign returns hex(HMAC-SHA256(secret, body)).
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks an X-Webhook-Signature header value against body. The
// "sha256=" prefix is optional. Receivers use it to authenticate requests.
func Verify(secret string, body []byte, signature string) bool {
	got, err := hex.DecodeString(strings.TrimPrefix(signature, SignaturePrefix))
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	return hmac.Equal(got, want)
}
