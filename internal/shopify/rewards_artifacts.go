package shopify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// GiftCardRequest creates a stored-value code bound to a customer.
type GiftCardRequest struct {
	InitialValue string `json:"initial_value"`
	Code         string `json:"code"`
	CustomerID   int64  `json:"customer_id"`
	Note         string `json:"note,omitempty"`
	ExpiresOn    string `json:"expires_on,omitempty"` // YYYY-MM-DD
}

type GiftCard struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	ExpiresOn string `json:"expires_on"`
}

// CreateGiftCard issues a gift card. Shopify may normalize the code, so the
// returned card carries the authoritative value.
func (c *Client) CreateGiftCard(ctx context.Context, gc GiftCardRequest) (*GiftCard, error) {
	var out struct {
		GiftCard *GiftCard `json:"gift_card"`
	}
	body := map[string]any{"gift_card": gc}
	if err := c.Post(ctx, "gift_cards.json", body, &out); err != nil {
		return nil, err
	}
	if out.GiftCard == nil {
		return nil, errors.New("gift card missing from response")
	}
	return out.GiftCard, nil
}

type PriceRule struct {
	ID int64 `json:"id"`
}

// CreateFixedAmountPriceRule creates a price rule worth amountVND off the
// whole order, restricted to a single use by the given customer and valid for
// the supplied window.
func (c *Client) CreateFixedAmountPriceRule(ctx context.Context, title string, amountVND int64, customerID int64, startsAt, endsAt time.Time) (*PriceRule, error) {
	body := map[string]any{
		"price_rule": map[string]any{
			"title":                     title,
			"target_type":               "line_item",
			"target_selection":          "all",
			"allocation_method":         "across",
			"value_type":                "fixed_amount",
			"value":                     "-" + strconv.FormatInt(amountVND, 10),
			"customer_selection":        "prerequisite",
			"prerequisite_customer_ids": []int64{customerID},
			"once_per_customer":         true,
			"usage_limit":               1,
			"starts_at":                 startsAt.UTC().Format(time.RFC3339),
			"ends_at":                   endsAt.UTC().Format(time.RFC3339),
		},
	}
	var out struct {
		PriceRule *PriceRule `json:"price_rule"`
	}
	if err := c.Post(ctx, "price_rules.json", body, &out); err != nil {
		return nil, err
	}
	if out.PriceRule == nil {
		return nil, errors.New("price rule missing from response")
	}
	return out.PriceRule, nil
}

type DiscountCode struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
}

// CreateDiscountCode attaches a redeemable code to an existing price rule.
func (c *Client) CreateDiscountCode(ctx context.Context, priceRuleID int64, code string) (*DiscountCode, error) {
	body := map[string]any{
		"discount_code": map[string]any{"code": code},
	}
	var out struct {
		DiscountCode *DiscountCode `json:"discount_code"`
	}
	path := fmt.Sprintf("price_rules/%d/discount_codes.json", priceRuleID)
	if err := c.Post(ctx, path, body, &out); err != nil {
		return nil, err
	}
	if out.DiscountCode == nil {
		return nil, errors.New("discount code missing from response")
	}
	return out.DiscountCode, nil
}
