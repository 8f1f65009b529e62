package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// RewardsNamespace is the customer metafield namespace holding loyalty state.
const (
	RewardsNamespace = "rewards"
	PointsKey        = "points"
	HistoryKey       = "history"
)

type Customer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Metafield is a namespaced key/value attribute on a Shopify resource. Value
// is kept raw because the Admin API returns it as a string, number, or JSON
// document depending on the metafield type.
type Metafield struct {
	ID        int64           `json:"id,omitempty"`
	Namespace string          `json:"namespace"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Type      string          `json:"type,omitempty"`
}

// IntValue parses the metafield value as an integer, accepting both bare
// numbers and quoted strings. Unparseable values read as 0.
func (m Metafield) IntValue() int64 {
	s := strings.Trim(string(m.Value), `"`)
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// GetCustomer fetches a customer by numeric id.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	var out struct {
		Customer *Customer `json:"customer"`
	}
	path := fmt.Sprintf("customers/%s.json", customerID)
	if err := c.Get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Customer == nil {
		return nil, &APIError{Status: 404, Body: "customer not found"}
	}
	return out.Customer, nil
}

// GetCustomerMetafields lists a customer's metafields, optionally filtered by
// namespace and key.
func (c *Client) GetCustomerMetafields(ctx context.Context, customerID, namespace, key string) ([]Metafield, error) {
	q := url.Values{}
	if namespace != "" {
		q.Set("namespace", namespace)
	}
	if key != "" {
		q.Set("key", key)
	}
	var out struct {
		Metafields []Metafield `json:"metafields"`
	}
	path := fmt.Sprintf("customers/%s/metafields.json", customerID)
	if err := c.Get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return out.Metafields, nil
}

// GetPoints reads the current points balance. A missing points metafield is a
// zero balance, not an error.
func (c *Client) GetPoints(ctx context.Context, customerID string) (int64, error) {
	metafields, err := c.GetCustomerMetafields(ctx, customerID, RewardsNamespace, PointsKey)
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	for _, m := range metafields {
		if m.Key == PointsKey {
			return m.IntValue(), nil
		}
	}
	return 0, nil
}

// SetPoints writes the points balance back as a number_integer metafield.
func (c *Client) SetPoints(ctx context.Context, customerID string, points int64) error {
	body := map[string]any{
		"metafield": map[string]any{
			"namespace": RewardsNamespace,
			"key":       PointsKey,
			"value":     strconv.FormatInt(points, 10),
			"type":      "number_integer",
		},
	}
	path := fmt.Sprintf("customers/%s/metafields.json", customerID)
	return c.Post(ctx, path, body, nil)
}

// SetHistory stores the serialized history list as a json metafield.
func (c *Client) SetHistory(ctx context.Context, customerID string, history json.RawMessage) error {
	body := map[string]any{
		"metafield": map[string]any{
			"namespace": RewardsNamespace,
			"key":       HistoryKey,
			"value":     string(history),
			"type":      "json",
		},
	}
	path := fmt.Sprintf("customers/%s/metafields.json", customerID)
	return c.Post(ctx, path, body, nil)
}

// GetHistoryRaw reads the raw history metafield value; nil when absent.
func (c *Client) GetHistoryRaw(ctx context.Context, customerID string) (json.RawMessage, error) {
	metafields, err := c.GetCustomerMetafields(ctx, customerID, RewardsNamespace, HistoryKey)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, m := range metafields {
		if m.Key == HistoryKey {
			return m.Value, nil
		}
	}
	return nil, nil
}
