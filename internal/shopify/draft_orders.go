package shopify

import (
	"context"
	"errors"
)

// AppliedDiscount is a per-line discount on a draft order line item.
type AppliedDiscount struct {
	Description string `json:"description"`
	ValueType   string `json:"value_type"`
	Value       string `json:"value"`
	Amount      string `json:"amount"`
}

type DraftLineItem struct {
	VariantID       int64            `json:"variant_id"`
	Quantity        int              `json:"quantity"`
	AppliedDiscount *AppliedDiscount `json:"applied_discount,omitempty"`
}

type DraftCustomerRef struct {
	ID int64 `json:"id"`
}

// DraftOrderRequest is the vendor-shaped draft_orders.json payload.
type DraftOrderRequest struct {
	LineItems                 []DraftLineItem   `json:"line_items"`
	Customer                  *DraftCustomerRef `json:"customer,omitempty"`
	Email                     string            `json:"email,omitempty"`
	UseCustomerDefaultAddress bool              `json:"use_customer_default_address"`
}

type DraftOrder struct {
	ID         int64  `json:"id"`
	InvoiceURL string `json:"invoice_url"`
	TotalPrice string `json:"total_price"`
	Status     string `json:"status"`
}

// CreateDraftOrder submits a draft order and returns it. The order is left in
// draft state on purpose: completing it converts it to a paid order and
// invalidates the hosted invoice URL.
func (c *Client) CreateDraftOrder(ctx context.Context, draft DraftOrderRequest) (*DraftOrder, error) {
	var out struct {
		DraftOrder *DraftOrder `json:"draft_order"`
	}
	body := map[string]any{"draft_order": draft}
	if err := c.Post(ctx, "draft_orders.json", body, &out); err != nil {
		return nil, err
	}
	if out.DraftOrder == nil {
		return nil, errors.New("draft order missing from response")
	}
	return out.DraftOrder, nil
}
