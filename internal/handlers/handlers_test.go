package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"helios-backend/internal/config"
	"helios-backend/internal/db"
	"helios-backend/internal/shopify"
)

func apiReq(method, path, body string, query map[string]string) events.APIGatewayV2HTTPRequest {
	req := events.APIGatewayV2HTTPRequest{
		RawPath:               path,
		Body:                  body,
		QueryStringParameters: query,
	}
	req.RequestContext.HTTP.Method = method
	return req
}

func decodeBody(t *testing.T, resp events.APIGatewayV2HTTPResponse) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(resp.Body), &m); err != nil {
		t.Fatalf("response body %q: %v", resp.Body, err)
	}
	return m
}

func testConfig(srvURL string) *config.Config {
	return &config.Config{
		Shop:        "example.myshopify.com",
		AccessToken: "tok",
		APIVersion:  "2024-10",
		RewardKind:  config.RewardGiftCard,
		Deadline:    time.Now().AddDate(1, 0, 0),
	}
}

func adminClient(srvURL string) *shopify.Client {
	c := shopify.NewClient("example.myshopify.com", "tok", "2024-10")
	c.BaseURL = srvURL
	return c
}

// adminFake serves the handful of Admin API routes the handlers exercise.
type adminFake struct {
	points       int64
	draftBodies  []map[string]any
	pointsPosted []int64
}

func (f *adminFake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/admin/api/2024-10/")
	switch {
	case path == "draft_orders.json" && r.Method == http.MethodPost:
		var body map[string]map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.draftBodies = append(f.draftBodies, body["draft_order"])
		fmt.Fprint(w, `{"draft_order":{"id":5001,"status":"open","invoice_url":"https://example.myshopify.com/invoices/abc","total_price":"180000.00"}}`)

	case path == "customers/123.json":
		fmt.Fprint(w, `{"customer":{"id":123,"email":"khach@example.com"}}`)

	case path == "customers/123/metafields.json" && r.Method == http.MethodGet:
		key := r.URL.Query().Get("key")
		var fields []string
		if key == "" || key == "points" {
			fields = append(fields, `{"namespace":"rewards","key":"points","value":"`+strconv.FormatInt(f.points, 10)+`","type":"number_integer"}`)
		}
		if key == "" || key == "history" {
			fields = append(fields, `{"namespace":"rewards","key":"history","value":"[{\"date\":\"2026-01-05T00:00:00Z\",\"action\":\"Đổi điểm lấy Gift Card\",\"points_used\":50000,\"discount_code\":\"RWD-OLD\",\"amount_vnd\":50000}]","type":"json"}`)
		}
		fmt.Fprint(w, `{"metafields":[`+strings.Join(fields, ",")+`]}`)

	case path == "customers/123/metafields.json" && r.Method == http.MethodPost:
		var body struct {
			Metafield struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			} `json:"metafield"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Metafield.Key == "points" {
			n, _ := strconv.ParseInt(body.Metafield.Value, 10, 64)
			f.pointsPosted = append(f.pointsPosted, n)
		}
		fmt.Fprint(w, `{"metafield":{"id":1}}`)

	case path == "gift_cards.json":
		var body map[string]map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		code, _ := body["gift_card"]["code"].(string)
		fmt.Fprintf(w, `{"gift_card":{"id":9001,"code":%q}}`, code)

	default:
		http.Error(w, `{"errors":"Not Found"}`, 404)
	}
}

func TestDraftOrderHandlerSuccess(t *testing.T) {
	fake := &adminFake{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	h := &DraftOrderHandler{Config: testConfig(srv.URL), Shopify: adminClient(srv.URL)}
	payload := `{"customer_id":123,"items":[
		{"variant_id":1,"quantity":1,"price":50000},
		{"variant_id":2,"quantity":2,"price":100000,"discount_percent":15}
	]}`

	resp, err := h.Handle(context.Background(), apiReq("POST", "/create-draft-order", payload, nil))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d body = %s", resp.StatusCode, resp.Body)
	}

	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	if body["invoice_url"] != "https://example.myshopify.com/invoices/abc" {
		t.Errorf("invoice_url = %v", body["invoice_url"])
	}
	if body["draft_order_id"] != float64(5001) {
		t.Errorf("draft_order_id = %v", body["draft_order_id"])
	}

	if len(fake.draftBodies) != 1 {
		t.Fatalf("draft orders posted = %d", len(fake.draftBodies))
	}
	raw, _ := json.Marshal(fake.draftBodies[0])
	if !strings.Contains(string(raw), `"amount":"30000.00"`) {
		t.Errorf("posted draft missing discount amount: %s", raw)
	}
	if !strings.Contains(string(raw), `"use_customer_default_address":true`) {
		t.Errorf("posted draft missing address flag: %s", raw)
	}
}

func TestDraftOrderHandlerRejectsBadInput(t *testing.T) {
	h := &DraftOrderHandler{Config: testConfig(""), Shopify: adminClient("http://unreachable.invalid")}

	resp, _ := h.Handle(context.Background(), apiReq("POST", "/create-draft-order", `{"items":[]}`, nil))
	if resp.StatusCode != 400 {
		t.Errorf("empty items status = %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "No items provided" {
		t.Errorf("error = %v", body["error"])
	}

	resp, _ = h.Handle(context.Background(), apiReq("POST", "/create-draft-order", `{not json`, nil))
	if resp.StatusCode != 400 {
		t.Errorf("bad json status = %d", resp.StatusCode)
	}

	resp, _ = h.Handle(context.Background(), apiReq("GET", "/create-draft-order", "", nil))
	if resp.StatusCode != 405 {
		t.Errorf("wrong method status = %d", resp.StatusCode)
	}
}

func TestDraftOrderHandlerPreflight(t *testing.T) {
	h := &DraftOrderHandler{Config: testConfig(""), Shopify: adminClient("http://unreachable.invalid")}
	resp, _ := h.Handle(context.Background(), apiReq("OPTIONS", "/create-draft-order", "", nil))
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Headers["access-control-allow-origin"] != "*" {
		t.Errorf("headers = %v", resp.Headers)
	}
	if !strings.Contains(resp.Headers["access-control-allow-methods"], "POST") {
		t.Errorf("allow-methods = %q", resp.Headers["access-control-allow-methods"])
	}
}

func TestDraftOrderHandlerRateLimitExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	h := &DraftOrderHandler{Config: testConfig(srv.URL), Shopify: adminClient(srv.URL)}
	resp, _ := h.Handle(context.Background(), apiReq("POST", "/create-draft-order",
		`{"items":[{"variant_id":1,"quantity":1,"price":1000}]}`, nil))
	if resp.StatusCode != 429 {
		t.Fatalf("status = %d body = %s", resp.StatusCode, resp.Body)
	}
}

func TestDraftOrderHandlerUpstreamClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":{"line_items":"variant not found"}}`, 422)
	}))
	defer srv.Close()

	h := &DraftOrderHandler{Config: testConfig(srv.URL), Shopify: adminClient(srv.URL)}
	resp, _ := h.Handle(context.Background(), apiReq("POST", "/create-draft-order",
		`{"items":[{"variant_id":1,"quantity":1,"price":1000}]}`, nil))
	if resp.StatusCode != 422 {
		t.Fatalf("status = %d, want vendor status passed through", resp.StatusCode)
	}
	if !strings.Contains(resp.Body, "variant not found") {
		t.Errorf("body = %s", resp.Body)
	}
}

func rewardsHandler(fake *adminFake, srvURL string) *RewardsHandler {
	return &RewardsHandler{
		Config:  testConfig(srvURL),
		Shopify: adminClient(srvURL),
		Claims:  &db.ClaimStore{},
	}
}

func TestRewardsExchangeSuccess(t *testing.T) {
	fake := &adminFake{points: 150000}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	h := rewardsHandler(fake, srv.URL)
	resp, err := h.Handle(context.Background(), apiReq("POST", "/rewards/exchange",
		`{"customer_id":"123","discount_value":50000}`, nil))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d body = %s", resp.StatusCode, resp.Body)
	}

	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	if body["points_used"] != float64(50000) || body["remaining_points"] != float64(100000) {
		t.Errorf("points = %v/%v", body["points_used"], body["remaining_points"])
	}
	code, _ := body["discount_code"].(string)
	if !strings.HasPrefix(code, "RWD-") {
		t.Errorf("discount_code = %q", code)
	}
	if len(fake.pointsPosted) != 1 || fake.pointsPosted[0] != 100000 {
		t.Errorf("points posted = %v", fake.pointsPosted)
	}
}

func TestRewardsExchangeInsufficientPoints(t *testing.T) {
	fake := &adminFake{points: 40000}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	h := rewardsHandler(fake, srv.URL)
	resp, _ := h.Handle(context.Background(), apiReq("POST", "/rewards/exchange",
		`{"customer_id":"123","discount_value":50000}`, nil))
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d body = %s", resp.StatusCode, resp.Body)
	}

	body := decodeBody(t, resp)
	if body["current_points"] != float64(40000) || body["points_required"] != float64(50000) {
		t.Errorf("body = %v", body)
	}
	if len(fake.pointsPosted) != 0 {
		t.Errorf("points posted = %v, want none", fake.pointsPosted)
	}
}

func TestRewardsExchangeValidation(t *testing.T) {
	h := rewardsHandler(nil, "http://unreachable.invalid")

	resp, _ := h.Handle(context.Background(), apiReq("POST", "/rewards/exchange",
		`{"discount_value":50000}`, nil))
	if resp.StatusCode != 400 {
		t.Errorf("missing customer status = %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "customer_id is required" {
		t.Errorf("error = %v", body["error"])
	}

	resp, _ = h.Handle(context.Background(), apiReq("POST", "/rewards/exchange",
		`{"customer_id":"123","discount_value":60000}`, nil))
	if resp.StatusCode != 400 {
		t.Errorf("invalid tier status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "Invalid discount_value" {
		t.Errorf("error = %v", body["error"])
	}
	if vals, ok := body["valid_values"].([]any); !ok || len(vals) != 4 {
		t.Errorf("valid_values = %v", body["valid_values"])
	}
}

func TestRewardsExchangeAfterDeadline(t *testing.T) {
	h := rewardsHandler(nil, "http://unreachable.invalid")
	h.Config.Deadline = time.Now().AddDate(0, 0, -1)

	resp, _ := h.Handle(context.Background(), apiReq("POST", "/rewards/exchange",
		`{"customer_id":"123","discount_value":50000}`, nil))
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d body = %s", resp.StatusCode, resp.Body)
	}
}

func TestRewardsExchangeUnknownCustomer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":"Not Found"}`, 404)
	}))
	defer srv.Close()

	h := rewardsHandler(nil, srv.URL)
	resp, _ := h.Handle(context.Background(), apiReq("POST", "/rewards/exchange",
		`{"customer_id":"999","discount_value":50000}`, nil))
	if resp.StatusCode != 404 {
		t.Fatalf("status = %d body = %s", resp.StatusCode, resp.Body)
	}
}

func TestRewardsHistory(t *testing.T) {
	fake := &adminFake{points: 70000}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	h := rewardsHandler(fake, srv.URL)
	resp, err := h.Handle(context.Background(), apiReq("GET", "/rewards/history", "",
		map[string]string{"customer_id": "123"}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d body = %s", resp.StatusCode, resp.Body)
	}

	body := decodeBody(t, resp)
	if body["points"] != float64(70000) {
		t.Errorf("points = %v", body["points"])
	}
	history, ok := body["history"].([]any)
	if !ok || len(history) != 1 {
		t.Fatalf("history = %v", body["history"])
	}
	entry := history[0].(map[string]any)
	if entry["discount_code"] != "RWD-OLD" {
		t.Errorf("entry = %v", entry)
	}
}

func TestRewardsHistoryRequiresCustomerID(t *testing.T) {
	h := rewardsHandler(nil, "http://unreachable.invalid")
	resp, _ := h.Handle(context.Background(), apiReq("GET", "/rewards/history", "", nil))
	if resp.StatusCode != 400 {
		t.Errorf("status = %d", resp.StatusCode)
	}

	resp, _ = h.Handle(context.Background(), apiReq("GET", "/rewards/history", "",
		map[string]string{"customer_id": "abc"}))
	if resp.StatusCode != 400 {
		t.Errorf("non-numeric status = %d", resp.StatusCode)
	}
}

func TestRewardsUnknownPath(t *testing.T) {
	h := rewardsHandler(nil, "http://unreachable.invalid")
	resp, _ := h.Handle(context.Background(), apiReq("GET", "/rewards/nope", "", nil))
	if resp.StatusCode != 404 {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestTestConfigHandlerMissingEnv(t *testing.T) {
	t.Setenv("SHOPIFY_SHOP", "")
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "")

	h := &TestConfigHandler{}
	resp, _ := h.Handle(context.Background(), apiReq("GET", "/test-config", "", nil))
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["success"] != false {
		t.Errorf("success = %v", body["success"])
	}
	cfg := body["config"].(map[string]any)
	if cfg["has_shop"] != false || cfg["has_token"] != false {
		t.Errorf("config = %v", cfg)
	}
}

func TestTestConfigHandlerProbesShop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"shop":{"name":"Helios","domain":"example.myshopify.com"}}`)
	}))
	defer srv.Close()

	t.Setenv("SHOPIFY_SHOP", "example.myshopify.com")
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "tok")

	h := &TestConfigHandler{Shopify: adminClient(srv.URL)}
	resp, _ := h.Handle(context.Background(), apiReq("GET", "/test-config", "", nil))
	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Fatalf("body = %v", body)
	}
	if body["shop_name"] != "Helios" {
		t.Errorf("shop_name = %v", body["shop_name"])
	}
}
