package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

type HealthConfig struct {
	HasShop     bool   `json:"has_shop"`
	HasToken    bool   `json:"has_token"`
	Shop        string `json:"shop"`
	TokenLength int    `json:"token_length"`
}

type HealthResponse struct {
	Status    string       `json:"status"`
	Service   string       `json:"service"`
	Timestamp string       `json:"timestamp"`
	Config    HealthConfig `json:"config"`
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	shop := os.Getenv("SHOPIFY_SHOP")
	token := os.Getenv("SHOPIFY_ACCESS_TOKEN")

	body, _ := json.Marshal(HealthResponse{
		Status:    "ok",
		Service:   "helios-backend",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Config: HealthConfig{
			HasShop:     shop != "",
			HasToken:    token != "",
			Shop:        shop,
			TokenLength: len(token),
		},
	})

	return events.APIGatewayV2HTTPResponse{
		StatusCode: 200,
		Headers: map[string]string{
			"content-type":                "application/json",
			"access-control-allow-origin": "*",
		},
		Body: string(body),
	}, nil
}

func main() {
	lambda.Start(handler)
}
