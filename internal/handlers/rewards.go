package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"helios-backend/internal/audit"
	"helios-backend/internal/config"
	"helios-backend/internal/db"
	"helios-backend/internal/notify"
	"helios-backend/internal/rewards"
	"helios-backend/internal/shopify"
)

const (
	exchangeMethods = "POST, OPTIONS"
	historyMethods  = "GET, OPTIONS"
)

// RewardsHandler serves the /rewards/* surface from one Lambda. Zero-value
// fields are resolved per invocation; tests inject their own.
type RewardsHandler struct {
	Config  *config.Config
	Shopify *shopify.Client
	Claims  *db.ClaimStore
	SQS     audit.SQSAPI
	SNS     notify.SNSAPI
}

// Handle routes by RawPath so both rewards endpoints share one Lambda.
func (h *RewardsHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	switch req.RawPath {
	case "/rewards/exchange":
		if resp, ok := preflight(req, exchangeMethods); ok {
			return resp, nil
		}
		if req.RequestContext.HTTP.Method != "POST" {
			return errResp(405, exchangeMethods, "Method not allowed")
		}
		return h.handleExchange(ctx, req)
	case "/rewards/history":
		if resp, ok := preflight(req, historyMethods); ok {
			return resp, nil
		}
		if req.RequestContext.HTTP.Method != "GET" {
			return errResp(405, historyMethods, "Method not allowed")
		}
		return h.handleHistory(ctx, req)
	default:
		return errResp(404, exchangeMethods, "not found")
	}
}

func (h *RewardsHandler) loadConfig(allowMethods string) (*config.Config, *events.APIGatewayV2HTTPResponse) {
	if h.Config != nil {
		return h.Config, nil
	}
	cfg, err := config.FromEnv()
	if err != nil {
		resp, _ := jsonResp(500, allowMethods, map[string]any{
			"error":   "Server configuration error",
			"message": err.Error(),
		})
		return nil, &resp
	}
	return cfg, nil
}

func (h *RewardsHandler) shopifyClient(cfg *config.Config) *shopify.Client {
	if h.Shopify != nil {
		return h.Shopify
	}
	return shopify.NewClient(cfg.Shop, cfg.AccessToken, cfg.APIVersion)
}

func (h *RewardsHandler) claimStore(ctx context.Context, cfg *config.Config) (*db.ClaimStore, error) {
	if h.Claims != nil {
		return h.Claims, nil
	}
	if cfg.ClaimsTable == "" {
		return &db.ClaimStore{}, nil
	}
	client, err := db.NewDynamoClient(ctx)
	if err != nil {
		return nil, err
	}
	return &db.ClaimStore{Client: client, Table: cfg.ClaimsTable}, nil
}

func (h *RewardsHandler) handleExchange(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	cfg, fail := h.loadConfig(exchangeMethods)
	if fail != nil {
		return *fail, nil
	}

	var body rewards.Request
	dec := json.NewDecoder(strings.NewReader(req.Body))
	if err := dec.Decode(&body); err != nil {
		return errResp(400, exchangeMethods, "invalid JSON body")
	}
	if strings.TrimSpace(body.CustomerID) == "" {
		return errResp(400, exchangeMethods, "customer_id is required")
	}

	claims, err := h.claimStore(ctx, cfg)
	if err != nil {
		return errResp(500, exchangeMethods, "failed to init claim store")
	}

	ex := &rewards.Exchanger{
		Shopify:    h.shopifyClient(cfg),
		Claims:     claims,
		RewardKind: cfg.RewardKind,
		Deadline:   cfg.Deadline,
	}
	if cfg.AuditQueueURL != "" {
		ex.AuditFailed = func(ctx context.Context, customerID string, entry rewards.HistoryEntry) {
			client := h.SQS
			if client == nil {
				c, err := audit.NewSQSClient(ctx)
				if err != nil {
					return
				}
				client = c
			}
			_ = audit.Enqueue(ctx, client, cfg.AuditQueueURL, customerID, entry)
		}
	}
	if cfg.AlertsTopicARN != "" {
		ex.Notify = func(ctx context.Context, customerID string, res rewards.Result) {
			client := h.SNS
			if client == nil {
				c, err := notify.NewSNSClient(ctx)
				if err != nil {
					return
				}
				client = c
			}
			_ = notify.PublishExchange(ctx, client, cfg.AlertsTopicARN, customerID, res.DiscountCode, res.PointsUsed, res.RemainingPoints)
		}
	}

	res, err := ex.Exchange(ctx, body)
	if err != nil {
		return exchangeErrResp(err)
	}

	return jsonResp(200, exchangeMethods, map[string]any{
		"success":          true,
		"discount_code":    res.DiscountCode,
		"discount_value":   res.DiscountValue,
		"points_used":      res.PointsUsed,
		"remaining_points": res.RemainingPoints,
	})
}

func exchangeErrResp(err error) (events.APIGatewayV2HTTPResponse, error) {
	var tierErr *rewards.InvalidTierError
	if errors.As(err, &tierErr) {
		return jsonResp(400, exchangeMethods, map[string]any{
			"error":        "Invalid discount_value",
			"valid_values": tierErr.ValidValues,
		})
	}
	var insufficient *rewards.InsufficientPointsError
	if errors.As(err, &insufficient) {
		return jsonResp(400, exchangeMethods, map[string]any{
			"error":           "Không đủ điểm",
			"current_points":  insufficient.CurrentPoints,
			"points_required": insufficient.RequiredPoints,
		})
	}
	var invalidCustomer *rewards.InvalidCustomerError
	if errors.As(err, &invalidCustomer) {
		return errResp(400, exchangeMethods, "Invalid customer_id format")
	}
	switch {
	case errors.Is(err, rewards.ErrProgramEnded):
		return errResp(400, exchangeMethods, "Chương trình đổi điểm đã kết thúc")
	case errors.Is(err, rewards.ErrCustomerNotFound):
		return errResp(404, exchangeMethods, "Customer not found")
	case errors.Is(err, db.ErrCustomerBusy), errors.Is(err, rewards.ErrExchangePending):
		return errResp(409, exchangeMethods, "Another exchange is already in progress")
	case shopify.IsForbidden(err):
		return errResp(403, exchangeMethods, "Shopify access token is missing a required scope (write_gift_cards or write_price_rules)")
	}
	return upstreamErrResp(err, exchangeMethods)
}

func (h *RewardsHandler) handleHistory(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	cfg, fail := h.loadConfig(historyMethods)
	if fail != nil {
		return *fail, nil
	}

	rawID := strings.TrimSpace(req.QueryStringParameters["customer_id"])
	if rawID == "" {
		return errResp(400, historyMethods, "customer_id is required")
	}
	customerID := rewards.SanitizeCustomerID(rawID)
	if customerID == "" {
		return errResp(400, historyMethods, "Invalid customer_id format")
	}

	client := h.shopifyClient(cfg)
	metafields, err := client.GetCustomerMetafields(ctx, customerID, shopify.RewardsNamespace, "")
	if err != nil {
		if shopify.IsNotFound(err) {
			return errResp(404, historyMethods, "Customer not found")
		}
		return upstreamErrResp(err, historyMethods)
	}

	var points int64
	history := []rewards.HistoryEntry{}
	for _, m := range metafields {
		switch m.Key {
		case shopify.PointsKey:
			points = m.IntValue()
		case shopify.HistoryKey:
			if entries := rewards.DecodeHistory(m.Value); entries != nil {
				history = entries
			}
		}
	}

	return jsonResp(200, historyMethods, map[string]any{
		"success":     true,
		"customer_id": customerID,
		"points":      points,
		"history":     history,
	})
}
