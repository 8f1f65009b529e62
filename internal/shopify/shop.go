package shopify

import (
	"context"
	"errors"
)

type Shop struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// GetShop fetches shop.json, used by the test-config diagnostics endpoint to
// verify the credentials actually work.
func (c *Client) GetShop(ctx context.Context) (*Shop, error) {
	var out struct {
		Shop *Shop `json:"shop"`
	}
	if err := c.Get(ctx, "shop.json", nil, &out); err != nil {
		return nil, err
	}
	if out.Shop == nil {
		return nil, errors.New("shop missing from response")
	}
	return out.Shop, nil
}
