package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-lambda-go/events"

	"helios-backend/internal/config"
	"helios-backend/internal/draftorder"
	"helios-backend/internal/shopify"
)

const draftOrderMethods = "POST, OPTIONS"

// DraftOrderHandler serves POST /create-draft-order. Zero-value fields are
// resolved per invocation; tests inject their own.
type DraftOrderHandler struct {
	Config  *config.Config
	Shopify *shopify.Client
}

// Handle validates the cart, submits the draft order through the retrying
// client, and returns the hosted invoice URL. The draft is intentionally not
// completed. There is no idempotency key: the same payload twice creates two
// independent draft orders.
func (h *DraftOrderHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if resp, ok := preflight(req, draftOrderMethods); ok {
		return resp, nil
	}
	if req.RequestContext.HTTP.Method != "POST" {
		return errResp(405, draftOrderMethods, "Method not allowed")
	}

	cfg := h.Config
	if cfg == nil {
		loaded, err := config.FromEnv()
		if err != nil {
			return jsonResp(500, draftOrderMethods, map[string]any{
				"error":   "Server configuration error",
				"message": err.Error(),
			})
		}
		cfg = loaded
	}
	client := h.Shopify
	if client == nil {
		client = shopify.NewClient(cfg.Shop, cfg.AccessToken, cfg.APIVersion)
	}

	var body draftorder.Request
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return errResp(400, draftOrderMethods, "invalid JSON body")
	}
	if err := draftorder.Validate(body); err != nil {
		return errResp(400, draftOrderMethods, err.Error())
	}

	draft, err := client.CreateDraftOrder(ctx, draftorder.Build(body))
	if err != nil {
		return upstreamErrResp(err, draftOrderMethods)
	}

	return jsonResp(200, draftOrderMethods, map[string]any{
		"success":        true,
		"invoice_url":    draft.InvoiceURL,
		"draft_order_id": draft.ID,
		"total_price":    draft.TotalPrice,
	})
}

// upstreamErrResp maps client errors onto the response taxonomy: exhausted
// rate limits become 429, exhausted 5xx and transport failures become 502,
// other vendor statuses pass through with their body.
func upstreamErrResp(err error, allowMethods string) (events.APIGatewayV2HTTPResponse, error) {
	var rle *shopify.RateLimitError
	if errors.As(err, &rle) {
		return errResp(429, allowMethods, "Shopify API rate limit exceeded. Please try again later.")
	}
	var ue *shopify.UpstreamError
	if errors.As(err, &ue) {
		return jsonResp(502, allowMethods, map[string]any{
			"error":  "Shopify API error",
			"status": ue.Status,
			"body":   ue.Body,
		})
	}
	var te *shopify.TransportError
	if errors.As(err, &te) {
		return errResp(502, allowMethods, "Failed to reach Shopify API")
	}
	var ae *shopify.APIError
	if errors.As(err, &ae) {
		return jsonResp(ae.Status, allowMethods, map[string]any{
			"error":  "Shopify API error",
			"status": ae.Status,
			"body":   ae.Body,
		})
	}
	return errResp(500, allowMethods, "Internal server error")
}
