package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	signaturePrefix = "sha256="
	maxBodyBytes    = 1 << 20
)

// Verifier checks an HMAC-SHA256 signature of the raw request body.
type Verifier struct {
	Secret []byte
}

func NewVerifier(secret []byte) *Verifier {
	return &Verifier{Secret: secret}
}

func (v *Verifier) Enabled() bool { return v != nil && len(v.Secret) > 0 }

// Sign returns the header value a sender puts on body.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.Secret)
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

func (v *Verifier) Valid(body []byte, header string) bool {
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(header), signaturePrefix))
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, v.Secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// RequireSignature rejects requests without a valid signature. The body is
// restored for the next handler.
func (v *Verifier) RequireSignature(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(HeaderSignature)
		if header == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing signature")
		}

		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
		}
		if !v.Valid(body, header) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
		}

		c.Request().Body = io.NopCloser(bytes.NewReader(body))
		return next(c)
	}
}
