package shopify

import (
	"bytes"
	"net/http"

	"storefront-insights/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

// WebhookVerifier validates the X-Shopify-Hmac-Sha256 header of a delivery
type WebhookVerifier struct{}

// NewWebhookVerifier creates a new webhook verifier
func NewWebhookVerifier() *WebhookVerifier {
	return &WebhookVerifier{}
}

var _ ports.WebhookVerifier = (*WebhookVerifier)(nil)

// Verify reports whether the payload was signed with secret
func (v *WebhookVerifier) Verify(payload []byte, headers http.Header, secret string) bool {
	if secret == "" {
		return false
	}

	req, err := http.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header = headers.Clone()

	app := goshopify.App{ApiSecret: secret}
	return app.VerifyWebhookRequest(req)
}
