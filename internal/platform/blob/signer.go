package blob

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"time"
)

// Signed URL validity window.
const DefaultSignatureTTL = 60 * time.Second

var (
	// ErrSignatureInvalid indicates a tampered or malformed signature.
	ErrSignatureInvalid = errors.New("blob: signature invalid")
	// ErrSignatureExpired indicates an expired download link.
	ErrSignatureExpired = errors.New("blob: signature expired")
)

// Signer issues and verifies time-limited capability tokens for object
// downloads. A signed link is self-authorizing until it expires.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner constructs a Signer. A non-positive ttl falls back to
// DefaultSignatureTTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultSignatureTTL
	}
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// TTL exposes the configured validity window.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign returns query parameters granting access to key until now+ttl.
func (s *Signer) Sign(key string, now time.Time) url.Values {
	expires := now.Add(s.ttl).Unix()
	v := url.Values{}
	v.Set("key", key)
	v.Set("expires", strconv.FormatInt(expires, 10))
	v.Set("signature", s.compute(key, expires))
	return v
}

// Verify checks the signature and expiry carried in query parameters
// and returns the object key on success.
func (s *Signer) Verify(v url.Values, now time.Time) (string, error) {
	key := v.Get("key")
	sig := v.Get("signature")
	expires, err := strconv.ParseInt(v.Get("expires"), 10, 64)
	if key == "" || sig == "" || err != nil {
		return "", ErrSignatureInvalid
	}
	if !hmac.Equal([]byte(s.compute(key, expires)), []byte(sig)) {
		return "", ErrSignatureInvalid
	}
	if now.Unix() > expires {
		return "", ErrSignatureExpired
	}
	return key, nil
}

func (s *Signer) compute(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(key))
	_, _ = mac.Write([]byte{'|'})
	_, _ = mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
