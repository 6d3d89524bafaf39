package signedrequest_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jgorset/fandjango/internal/domain"
	"github.com/jgorset/fandjango/internal/signedrequest"
)

var secret = []byte("214e4cb484c28c35f18a70a3d735999b")

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := &signedrequest.Payload{
		Algorithm:  signedrequest.Algorithm,
		IssuedAt:   1306179904,
		UserID:     "499016706",
		OAuthToken: "181259711925270|1570a553ad6605705d1b7a5f.1-499016706|-test-token",
		Expires:    3600,
		Page:       &signedrequest.Page{ID: "19292868552", IsAdmin: true, IsLiked: true},
		User:       &signedrequest.Viewer{Country: "no", Locale: "nb_NO"},
	}

	raw, err := signedrequest.Encode(payload, secret)
	require.NoError(t, err)
	require.NotContains(t, raw, "=", "output must not carry base64 padding")

	decoded, err := signedrequest.Decode(raw, secret)
	require.NoError(t, err)
	require.Equal(t, payload, decoded)
}

func TestDecodeRejectsTamperedSignature(t *testing.T) {
	raw, err := signedrequest.Encode(&signedrequest.Payload{
		Algorithm: signedrequest.Algorithm,
		IssuedAt:  1306179904,
		UserID:    "499016706",
	}, secret)
	require.NoError(t, err)

	encodedSig, encodedPayload, _ := strings.Cut(raw, ".")
	sig, err := base64.RawURLEncoding.DecodeString(encodedSig)
	require.NoError(t, err)

	for i := range sig {
		flipped := make([]byte, len(sig))
		copy(flipped, sig)
		flipped[i] ^= 0x01

		tampered := base64.RawURLEncoding.EncodeToString(flipped) + "." + encodedPayload
		_, err := signedrequest.Decode(tampered, secret)
		require.ErrorIs(t, err, domain.ErrSignatureMismatch, "flipped byte %d", i)
	}
}

func TestDecodeRejectsWrongSecret(t *testing.T) {
	raw, err := signedrequest.Encode(&signedrequest.Payload{
		Algorithm: signedrequest.Algorithm,
		IssuedAt:  1306179904,
	}, secret)
	require.NoError(t, err)

	_, err = signedrequest.Decode(raw, []byte("other-secret"))
	require.ErrorIs(t, err, domain.ErrSignatureMismatch)
}

func TestDecodeRejectsUnknownAlgorithm(t *testing.T) {
	// Correctly signed, but declaring HMAC-SHA512. The algorithm check must
	// win over signature validity.
	raw, err := signedrequest.Encode(&signedrequest.Payload{
		Algorithm: "HMAC-SHA512",
		IssuedAt:  1306179904,
	}, secret)
	require.NoError(t, err)

	_, err = signedrequest.Decode(raw, secret)
	require.ErrorIs(t, err, domain.ErrUnsupportedAlgorithm)
}

func TestDecodeAcceptsLowercaseAlgorithm(t *testing.T) {
	raw, err := signedrequest.Encode(&signedrequest.Payload{
		Algorithm: "hmac-sha256",
		IssuedAt:  1306179904,
	}, secret)
	require.NoError(t, err)

	decoded, err := signedrequest.Decode(raw, secret)
	require.NoError(t, err)
	require.Equal(t, "hmac-sha256", decoded.Algorithm)
}

func TestDecodeMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":             "",
		"no separator":      "Zm9v",
		"empty signature":   ".Zm9v",
		"empty payload":     "Zm9v.",
		"payload not json":  "Zm9v.Zm9v",
		"invalid base64":    "!!!.%%%",
		"missing issued_at": mustEncodeSegments(t, `{"algorithm":"HMAC-SHA256"}`),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := signedrequest.Decode(raw, secret)
			require.ErrorIs(t, err, domain.ErrMalformedInput)
		})
	}
}

func TestDecodeRestoresStrippedPadding(t *testing.T) {
	// Facebook strips '=' padding from both segments; Decode must restore it.
	payload := &signedrequest.Payload{
		Algorithm: signedrequest.Algorithm,
		IssuedAt:  1306179904,
		UserID:    "1",
	}
	raw, err := signedrequest.Encode(payload, secret)
	require.NoError(t, err)
	require.NotContains(t, raw, "=")

	decoded, err := signedrequest.Decode(raw, secret)
	require.NoError(t, err)
	require.Equal(t, payload.UserID, decoded.UserID)
}

func TestDecodeNumericUserID(t *testing.T) {
	raw := mustSign(t, `{"algorithm":"HMAC-SHA256","issued_at":1306179904,"user_id":499016706}`)
	decoded, err := signedrequest.Decode(raw, secret)
	require.NoError(t, err)
	require.Equal(t, "499016706", decoded.UserID)
}

func TestExpiresAtRelativeSeconds(t *testing.T) {
	p := &signedrequest.Payload{IssuedAt: 1306179904, Expires: 3600}
	at := p.ExpiresAt()
	require.NotNil(t, at)
	require.Equal(t, time.Unix(1306179904+3600, 0), *at)
}

func TestExpiresAtAbsoluteTimestampShim(t *testing.T) {
	// Tab contexts send an absolute timestamp where seconds are documented.
	p := &signedrequest.Payload{IssuedAt: 1306179904, Expires: 1306183504}
	at := p.ExpiresAt()
	require.NotNil(t, at)
	require.Equal(t, time.Unix(1306183504, 0), *at)
}

func TestExpiresAtZeroMeansNonExpiring(t *testing.T) {
	p := &signedrequest.Payload{IssuedAt: 1306179904}
	require.Nil(t, p.ExpiresAt())
	require.Nil(t, p.Token())
}

func TestTokenMaterial(t *testing.T) {
	p := &signedrequest.Payload{
		Algorithm:  signedrequest.Algorithm,
		IssuedAt:   1306179904,
		UserID:     "499016706",
		OAuthToken: "opaque-token",
		Expires:    3600,
	}
	token := p.Token()
	require.NotNil(t, token)
	require.Equal(t, "opaque-token", token.Token)
	require.Equal(t, time.Unix(1306179904, 0), token.IssuedAt)
	require.NotNil(t, token.ExpiresAt)
	require.False(t, token.Expired(time.Unix(1306179904, 0)))
	require.True(t, token.Expired(time.Unix(1306179904+7200, 0)))
}

func mustEncodeSegments(t *testing.T, body string) string {
	t.Helper()
	return "c2ln." + base64.RawURLEncoding.EncodeToString([]byte(body))
}

func mustSign(t *testing.T, body string) string {
	t.Helper()
	encoded := base64.RawURLEncoding.EncodeToString([]byte(body))
	return signSegment(encoded) + "." + encoded
}

func signSegment(encoded string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
