package handlers

import (
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
)

func corsHeaders(allowMethods string) map[string]string {
	return map[string]string{
		"content-type":                 "application/json",
		"access-control-allow-origin":  "*",
		"access-control-allow-methods": allowMethods,
		"access-control-allow-headers": "Content-Type",
	}
}

func jsonResp(status int, allowMethods string, v any) (events.APIGatewayV2HTTPResponse, error) {
	b, _ := json.Marshal(v)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    corsHeaders(allowMethods),
		Body:       string(b),
	}, nil
}

func errResp(status int, allowMethods, msg string) (events.APIGatewayV2HTTPResponse, error) {
	return jsonResp(status, allowMethods, map[string]any{
		"error": msg,
	})
}

// preflight answers CORS OPTIONS requests; ok reports whether the request was
// handled.
func preflight(req events.APIGatewayV2HTTPRequest, allowMethods string) (events.APIGatewayV2HTTPResponse, bool) {
	if req.RequestContext.HTTP.Method != "OPTIONS" {
		return events.APIGatewayV2HTTPResponse{}, false
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: 200,
		Headers:    corsHeaders(allowMethods),
	}, true
}
