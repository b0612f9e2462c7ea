package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront-insights/internal/application"
	"storefront-insights/internal/domain"
	"storefront-insights/internal/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxWebhookBodyBytes = 5 << 20

func init() {
	// Prices and totals are rendered as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// Handlers serves the ingest, webhook and insight endpoints
type Handlers struct {
	sync          *application.SyncService
	recorder      *application.EventRecorder
	insights      *application.InsightService
	verifier      ports.WebhookVerifier
	webhookSecret string
	defaultShop   string
	logger        zerolog.Logger
}

// NewHandlers creates the HTTP handlers. defaultShop selects the tenant for
// insight requests without a shop query parameter.
func NewHandlers(
	sync *application.SyncService,
	recorder *application.EventRecorder,
	insights *application.InsightService,
	verifier ports.WebhookVerifier,
	webhookSecret string,
	defaultShop string,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		sync:          sync,
		recorder:      recorder,
		insights:      insights,
		verifier:      verifier,
		webhookSecret: webhookSecret,
		defaultShop:   defaultShop,
		logger:        logger,
	}
}

type ingestResponse struct {
	Message       string `json:"message"`
	Customers     int    `json:"customers"`
	Products      int    `json:"products"`
	Orders        int    `json:"orders"`
	SkippedOrders int    `json:"skippedOrders"`
}

// Ingest runs one sync pass
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	result, err := h.sync.Run(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Ingestion failed")
		http.Error(w, "Ingestion failed.", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Message:       "Full ingestion complete!",
		Customers:     result.Customers,
		Products:      result.Products,
		Orders:        result.Orders,
		SkippedOrders: result.SkippedOrders,
	})
}

// Webhook verifies and records a Shopify webhook delivery
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret == "" {
		h.logger.Warn().Msg("Webhook secret not configured")
		http.Error(w, "Webhook secret not configured", http.StatusServiceUnavailable)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn().Int64("limit", tooLarge.Limit).Msg("Webhook payload too large")
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.Error().Err(err).Msg("Failed to read webhook payload")
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	delivery := &domain.WebhookDelivery{
		Topic:      r.Header.Get("X-Shopify-Topic"),
		Shop:       r.Header.Get("X-Shopify-Shop-Domain"),
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}

	if !h.verifier.Verify(payload, r.Header, h.webhookSecret) {
		h.recorder.Reject(r.Context(), delivery)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}
	delivery.Verified = true

	outcome, err := h.recorder.Record(r.Context(), delivery)
	if err != nil {
		var validation *domain.ValidationError
		if errors.As(err, &validation) {
			h.logger.Warn().Err(err).Str("topic", delivery.Topic).Msg("Rejected webhook delivery")
			http.Error(w, validation.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error().Err(err).Str("topic", delivery.Topic).Str("shop", delivery.Shop).Msg("Failed to record webhook event")
		http.Error(w, "Failed to record webhook event", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{
		"received": true,
		"recorded": outcome == domain.OutcomeRecorded,
	})
}

// Totals serves the headline counts
func (h *Handlers) Totals(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	totals, err := h.insights.Totals(r.Context(), tenant.ID)
	h.respond(w, "totals", totals, err)
}

// TopCustomers serves the top five customers by spend
func (h *Handlers) TopCustomers(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	top, err := h.insights.TopCustomers(r.Context(), tenant.ID)
	h.respond(w, "top customers", top, err)
}

// OrdersByDate serves orders placed between startDate and endDate
func (h *Handlers) OrdersByDate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	dates, err := application.ParseDateRange(query.Get("startDate"), query.Get("endDate"))
	if err != nil {
		h.respond(w, "orders by date", nil, err)
		return
	}

	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	orders, err := h.insights.OrdersByDate(r.Context(), tenant.ID, dates)
	h.respond(w, "orders by date", orders, err)
}

// RevenueByCategory serves the estimated revenue split by category
func (h *Handlers) RevenueByCategory(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	revenue, err := h.insights.RevenueByCategory(r.Context(), tenant.ID)
	h.respond(w, "revenue by category", revenue, err)
}

// Funnel serves the checkout conversion funnel
func (h *Handlers) Funnel(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	funnel, err := h.insights.Funnel(r.Context(), tenant.ID)
	h.respond(w, "funnel", funnel, err)
}

// tenant resolves the shop query parameter, falling back to the configured shop
func (h *Handlers) tenant(w http.ResponseWriter, r *http.Request) (*domain.Tenant, bool) {
	shop := strings.TrimSpace(r.URL.Query().Get("shop"))
	if shop == "" {
		shop = h.defaultShop
	}

	tenant, err := h.insights.ResolveTenant(r.Context(), shop)
	if err != nil {
		h.respond(w, "tenant", nil, err)
		return nil, false
	}
	return tenant, true
}

func (h *Handlers) respond(w http.ResponseWriter, what string, body interface{}, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, body)
		return
	}

	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		http.Error(w, validation.Error(), http.StatusBadRequest)
	case errors.As(err, &notFound):
		http.Error(w, "No tenant data found.", http.StatusNotFound)
	default:
		h.logger.Error().Err(err).Str("insight", what).Msg("Failed to compute insight")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
