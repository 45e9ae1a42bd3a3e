package penalty

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Signer authenticates outbound station control messages with a keyed
// hash over the serialized body. The secret is provisioned server-side
// at page render; a missing secret degrades to unsigned messages rather
// than blocking the operator.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer for secret. An empty secret produces a
// signer that passes messages through unsigned.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the hex-encoded HMAC-SHA256 of body.
func (s *Signer) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is a valid signature for body.
func (s *Signer) Verify(body []byte, sig string) bool {
	expected, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// SignedPayload stamps msg with a timestamp, computes the signature over
// the serialized body (signature field absent), and returns the final
// wire payload with the signature attached.
func (s *Signer) SignedPayload(msg map[string]any, now time.Time) ([]byte, error) {
	msg["timestamp"] = now.UTC().Format(time.RFC3339)

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode station message: %w", err)
	}
	if len(s.secret) == 0 {
		log.Warn().Msg("station secret missing, sending unsigned message")
		return body, nil
	}

	msg["signature"] = s.Sign(body)
	signed, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed station message: %w", err)
	}
	return signed, nil
}
