package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// SignatureVerifier checks the x-signature header Mercado Pago attaches to
// webhook notifications:
//
//	x-signature: ts=<unix seconds>,v1=<hex hmac-sha256>
//
// The HMAC covers the manifest "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
type SignatureVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewSignatureVerifier returns a verifier for secret. Notifications whose ts
// is further than tolerance from now are rejected; zero disables the check.
func NewSignatureVerifier(secret string, tolerance time.Duration) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Verify returns an error wrapping domain.ErrUnauthorized when the signature
// is missing, malformed, stale or wrong.
func (v *SignatureVerifier) Verify(signature, requestID, dataID string) error {
	var ts, sig string
	for _, part := range strings.Split(signature, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = val
		case "v1":
			sig = val
		}
	}
	if ts == "" || sig == "" {
		return fmt.Errorf("%w: malformed webhook signature", domain.ErrUnauthorized)
	}

	if v.tolerance > 0 {
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: malformed webhook timestamp", domain.ErrUnauthorized)
		}
		// ts may be seconds or milliseconds.
		if sec > 1e12 {
			sec /= 1000
		}
		if d := v.now().Sub(time.Unix(sec, 0)); d > v.tolerance || d < -v.tolerance {
			return fmt.Errorf("%w: stale webhook signature", domain.ErrUnauthorized)
		}
	}

	want, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("%w: malformed webhook signature", domain.ErrUnauthorized)
	}
	if !hmac.Equal(want, Sign(v.secret, Manifest(dataID, requestID, ts))) {
		return fmt.Errorf("%w: webhook signature mismatch", domain.ErrUnauthorized)
	}
	return nil
}

// Manifest builds the string Mercado Pago signs. Alphanumeric ids are
// lower-cased as the gateway does.
func Manifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")
	return b.String()
}

// Sign returns the HMAC-SHA256 of manifest under secret.
func Sign(secret []byte, manifest string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(manifest))
	return mac.Sum(nil)
}
