// Package draftorder validates cart payloads and assembles the draft-order
// request sent to the Admin API. Draft orders are never completed here: a
// completed draft converts to a paid order and its invoice URL stops working.
package draftorder

import (
	"fmt"

	"github.com/shopspring/decimal"

	"helios-backend/internal/shopify"
)

// Labels attached to percentage discount lines. Free gifts (is_gift, or a
// flat 100% discount) get their own label; the amount math is identical.
const (
	freeGiftLabel = "Quà tặng miễn phí"
	tierLabelFmt  = "Tier Discount %s%%"
)

// CartItem is one storefront cart line. Prices arrive as JSON numbers in the
// shop currency.
type CartItem struct {
	VariantID       int64   `json:"variant_id"`
	Quantity        int     `json:"quantity"`
	Price           float64 `json:"price"`
	DiscountPercent float64 `json:"discount_percent"`
	IsGift          bool    `json:"is_gift,omitempty"`
}

// Request is the POST /create-draft-order body.
type Request struct {
	CustomerID    int64      `json:"customer_id,omitempty"`
	CustomerEmail string     `json:"customer_email,omitempty"`
	Items         []CartItem `json:"items"`
}

// ValidationError reports a client input problem; handlers map it to 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Validate applies the per-item rules: variant_id present, quantity > 0,
// price >= 0, discount_percent within [0,100].
func Validate(req Request) error {
	if len(req.Items) == 0 {
		return invalidf("No items provided")
	}
	for i, item := range req.Items {
		if item.VariantID == 0 {
			return invalidf("Item %d: variant_id is required", i)
		}
		if item.Quantity <= 0 {
			return invalidf("Item %d: quantity must be greater than 0", i)
		}
		if item.Price < 0 {
			return invalidf("Item %d: price must be a positive number", i)
		}
		if item.DiscountPercent < 0 || item.DiscountPercent > 100 {
			return invalidf("Item %d: discount_percent must be between 0 and 100", i)
		}
	}
	return nil
}

// DiscountAmount computes price*quantity*percent/100 fixed to two decimals.
func DiscountAmount(price float64, quantity int, percent float64) string {
	total := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity)))
	return total.Mul(decimal.NewFromFloat(percent)).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// Build assembles the vendor payload from a validated request. Items with a
// zero discount carry no applied_discount. Customer id wins over email when
// both are present.
func Build(req Request) shopify.DraftOrderRequest {
	lineItems := make([]shopify.DraftLineItem, 0, len(req.Items))
	for _, item := range req.Items {
		li := shopify.DraftLineItem{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		}
		if item.DiscountPercent > 0 {
			value := decimal.NewFromFloat(item.DiscountPercent)
			description := fmt.Sprintf(tierLabelFmt, value.String())
			if item.IsGift || item.DiscountPercent == 100 {
				description = freeGiftLabel
			}
			li.AppliedDiscount = &shopify.AppliedDiscount{
				Description: description,
				ValueType:   "percentage",
				Value:       value.String(),
				Amount:      DiscountAmount(item.Price, item.Quantity, item.DiscountPercent),
			}
		}
		lineItems = append(lineItems, li)
	}

	draft := shopify.DraftOrderRequest{
		LineItems:                 lineItems,
		UseCustomerDefaultAddress: true,
	}
	if req.CustomerID != 0 {
		draft.Customer = &shopify.DraftCustomerRef{ID: req.CustomerID}
	} else if req.CustomerEmail != "" {
		draft.Email = req.CustomerEmail
	}
	return draft
}
