package handlers

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"

	"helios-backend/internal/config"
	"helios-backend/internal/shopify"
)

const testConfigMethods = "GET, OPTIONS"

// TestConfigHandler reports whether the Shopify credentials are present and
// usable. It always answers 200 so the storefront can render the result.
type TestConfigHandler struct {
	Shopify *shopify.Client
}

func (h *TestConfigHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if resp, ok := preflight(req, testConfigMethods); ok {
		return resp, nil
	}

	shop := os.Getenv("SHOPIFY_SHOP")
	token := os.Getenv("SHOPIFY_ACCESS_TOKEN")
	body := map[string]any{
		"success": false,
		"config": map[string]any{
			"has_shop":     shop != "",
			"has_token":    token != "",
			"shop":         shop,
			"token_length": len(token),
		},
	}

	cfg, err := config.FromEnv()
	if err != nil {
		body["error"] = err.Error()
		return jsonResp(200, testConfigMethods, body)
	}

	client := h.Shopify
	if client == nil {
		client = shopify.NewClient(cfg.Shop, cfg.AccessToken, cfg.APIVersion)
	}
	info, err := client.GetShop(ctx)
	if err != nil {
		body["error"] = err.Error()
		return jsonResp(200, testConfigMethods, body)
	}

	body["success"] = true
	body["shop_name"] = info.Name
	body["shop_domain"] = info.Domain
	return jsonResp(200, testConfigMethods, body)
}
