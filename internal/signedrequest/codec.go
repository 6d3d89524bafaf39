package signedrequest

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jgorset/fandjango/internal/domain"
)

// Algorithm is the only signature algorithm Facebook emits.
const Algorithm = "HMAC-SHA256"

// absoluteExpiresThreshold separates relative-seconds expiry values from
// absolute unix timestamps (2010-01-01T00:00:00Z). Facebook tab contexts are
// known to send a timestamp where a number of seconds is documented; values
// past this point are treated as absolute. Compatibility shim, not a
// correctness guarantee.
const absoluteExpiresThreshold = 1262304000

// Page describes the Facebook Page context of a tab request.
type Page struct {
	ID      string `json:"id"`
	IsAdmin bool   `json:"admin"`
	IsLiked bool   `json:"liked"`
}

// Viewer carries the coarse, pre-authorization viewer attributes Facebook
// includes for every request.
type Viewer struct {
	Country string `json:"country,omitempty"`
	Locale  string `json:"locale,omitempty"`
}

// Payload is the decoded body of a signed request. UserID and OAuthToken are
// empty until the viewer has authorized the application.
type Payload struct {
	Algorithm  string  `json:"algorithm"`
	IssuedAt   int64   `json:"issued_at"`
	UserID     string  `json:"user_id,omitempty"`
	OAuthToken string  `json:"oauth_token,omitempty"`
	Expires    int64   `json:"expires,omitempty"`
	Page       *Page   `json:"page,omitempty"`
	User       *Viewer `json:"user,omitempty"`
}

// UnmarshalJSON tolerates numeric user ids; Facebook has emitted both forms.
func (p *Payload) UnmarshalJSON(data []byte) error {
	type alias Payload
	aux := struct {
		UserID json.RawMessage `json:"user_id"`
		*alias
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.UserID) > 0 {
		var s string
		if err := json.Unmarshal(aux.UserID, &s); err == nil {
			p.UserID = s
		} else {
			var n json.Number
			if err := json.Unmarshal(aux.UserID, &n); err != nil {
				return err
			}
			p.UserID = n.String()
		}
	}
	return nil
}

// ExpiresAt resolves the payload's expiry into an absolute time, applying the
// absolute-vs-relative shim. A zero Expires means the token does not expire.
func (p *Payload) ExpiresAt() *time.Time {
	if p.Expires == 0 {
		return nil
	}
	var at time.Time
	if p.Expires > absoluteExpiresThreshold {
		at = time.Unix(p.Expires, 0)
	} else {
		at = time.Unix(p.IssuedAt+p.Expires, 0)
	}
	return &at
}

// Token builds the credential carried by the payload, or nil when the viewer
// has not authorized the application.
func (p *Payload) Token() *domain.OAuthToken {
	if p.OAuthToken == "" {
		return nil
	}
	return &domain.OAuthToken{
		Token:     p.OAuthToken,
		IssuedAt:  time.Unix(p.IssuedAt, 0),
		ExpiresAt: p.ExpiresAt(),
	}
}

// Decode splits, verifies, and parses a signed request. The signature covers
// the base64url-encoded payload segment, not the decoded bytes.
func Decode(raw string, secret []byte) (*Payload, error) {
	encodedSig, encodedPayload, ok := strings.Cut(raw, ".")
	if !ok || encodedSig == "" || encodedPayload == "" {
		return nil, domain.ErrMalformedInput
	}

	sig, err := decodeBase64(encodedSig)
	if err != nil {
		return nil, fmt.Errorf("%w: decode signature: %v", domain.ErrMalformedInput, err)
	}
	body, err := decodeBase64(encodedPayload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", domain.ErrMalformedInput, err)
	}

	var payload Payload
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: parse payload: %v", domain.ErrMalformedInput, err)
	}
	if payload.IssuedAt == 0 {
		return nil, fmt.Errorf("%w: missing issued_at", domain.ErrMalformedInput)
	}
	if !strings.EqualFold(payload.Algorithm, Algorithm) {
		return nil, domain.ErrUnsupportedAlgorithm
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(encodedPayload))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return nil, domain.ErrSignatureMismatch
	}

	return &payload, nil
}

// Encode signs a payload into the wire format
// base64url(signature) + "." + base64url(json), padding stripped.
// Round-trips with Decode.
func Encode(p *Payload, secret []byte) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	encodedPayload := base64.RawURLEncoding.EncodeToString(body)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(encodedPayload))
	encodedSig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return encodedSig + "." + encodedPayload, nil
}

// decodeBase64 restores the '=' padding Facebook strips before decoding.
func decodeBase64(s string) ([]byte, error) {
	if mod := len(s) % 4; mod != 0 {
		s += strings.Repeat("=", 4-mod)
	}
	return base64.URLEncoding.DecodeString(s)
}
