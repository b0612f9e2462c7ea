package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWebhookVerifier(t *testing.T) {
	payload := []byte(`{"id":981,"token":"abc"}`)
	verifier := NewWebhookVerifier()

	headers := http.Header{}
	headers.Set("X-Shopify-Hmac-Sha256", sign(payload, "shhh"))
	headers.Set("X-Shopify-Topic", "checkouts/create")

	assert.True(t, verifier.Verify(payload, headers, "shhh"))
	assert.False(t, verifier.Verify(payload, headers, "other"))
	assert.False(t, verifier.Verify([]byte(`{"id":982}`), headers, "shhh"))
	assert.False(t, verifier.Verify(payload, http.Header{}, "shhh"))
	assert.False(t, verifier.Verify(payload, headers, ""))
}
