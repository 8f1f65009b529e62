// Package rewards runs the points-to-reward exchange: a linear sequence of
// Admin API calls that issues a gift card or discount code and debits the
// customer's points metafield. IssueReward and DebitPoints are separate
// external writes with no transaction between them; the claim store keeps the
// sequence at-most-once per request id and serializes it per customer.
package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"helios-backend/internal/config"
	"helios-backend/internal/db"
	"helios-backend/internal/shopify"
)

const (
	giftCardNote       = "Đổi điểm thưởng Helios Rewards"
	giftCardAction     = "Đổi điểm lấy Gift Card"
	discountAction     = "Đổi điểm lấy mã giảm giá"
	discountRuleTitle  = "Helios Rewards"
	discountValidDays  = 90
	giftCardCodeLength = 12
	discountCodeLength = 8
)

// ErrProgramEnded rejects exchanges after the program deadline.
var ErrProgramEnded = errors.New("points exchange program has ended")

// ErrCustomerNotFound is the terminal not-found from FetchCustomer.
var ErrCustomerNotFound = errors.New("customer not found")

// ErrExchangePending means the request id is already claimed by an exchange
// that has not completed.
var ErrExchangePending = errors.New("exchange with this request id is already in progress")

// InvalidTierError reports a discount_value outside the tier table.
type InvalidTierError struct {
	Value       int64
	ValidValues []int64
}

func (e *InvalidTierError) Error() string {
	return fmt.Sprintf("invalid discount_value %d", e.Value)
}

// InsufficientPointsError reports both sides of a failed sufficiency check.
type InsufficientPointsError struct {
	CurrentPoints  int64
	RequiredPoints int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: have %d, need %d", e.CurrentPoints, e.RequiredPoints)
}

// Request is one exchange attempt. RequestID is optional; when set it keys
// the idempotency claim.
type Request struct {
	CustomerID    string `json:"customer_id"`
	DiscountValue int64  `json:"discount_value"`
	RequestID     string `json:"request_id,omitempty"`
}

// UnmarshalJSON accepts customer_id as either a JSON string or a number,
// since storefront callers send both.
func (r *Request) UnmarshalJSON(data []byte) error {
	var wire struct {
		CustomerID    json.RawMessage `json:"customer_id"`
		DiscountValue int64           `json:"discount_value"`
		RequestID     string          `json:"request_id"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.DiscountValue = wire.DiscountValue
	r.RequestID = wire.RequestID
	id := strings.Trim(string(wire.CustomerID), `"`)
	if id == "null" {
		id = ""
	}
	r.CustomerID = id
	return nil
}

// Result is the successful exchange outcome.
type Result struct {
	DiscountCode    string
	DiscountValue   int64
	PointsUsed      int64
	RemainingPoints int64
	Replayed        bool
}

// Exchanger executes the exchange sequence. Claims may be a disabled store;
// AuditFailed and Notify are optional hooks.
type Exchanger struct {
	Shopify    *shopify.Client
	Claims     *db.ClaimStore
	RewardKind config.RewardKind
	Deadline   time.Time

	// Now is swapped out in tests.
	Now func() time.Time

	// AuditFailed is invoked when the best-effort history append fails, so
	// the entry can be queued for the audit worker.
	AuditFailed func(ctx context.Context, customerID string, entry HistoryEntry)

	// Notify is invoked after a completed exchange.
	Notify func(ctx context.Context, customerID string, res Result)
}

func (e *Exchanger) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// SanitizeCustomerID strips everything but digits, accepting both bare ids
// and gid:// forms.
func SanitizeCustomerID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Exchange validates the request, claims the request id, locks the customer,
// checks the balance, issues the reward, debits the points, and records
// history. Failures before the debit leave the balance untouched.
func (e *Exchanger) Exchange(ctx context.Context, req Request) (*Result, error) {
	customerID := SanitizeCustomerID(req.CustomerID)
	if customerID == "" {
		return nil, &InvalidCustomerError{Raw: req.CustomerID}
	}

	required, ok := RequiredPoints(req.DiscountValue)
	if !ok {
		return nil, &InvalidTierError{Value: req.DiscountValue, ValidValues: ValidValues()}
	}
	if e.now().After(e.Deadline) {
		return nil, ErrProgramEnded
	}

	// At-most-once per request id.
	existing, err := e.Claims.ClaimExchange(ctx, customerID, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("claim exchange: %w", err)
	}
	if existing != nil {
		if existing.Status == "completed" {
			return &Result{
				DiscountCode:    existing.DiscountCode,
				DiscountValue:   existing.DiscountValue,
				PointsUsed:      existing.PointsUsed,
				RemainingPoints: existing.RemainingPoint,
				Replayed:        true,
			}, nil
		}
		return nil, ErrExchangePending
	}

	// Serialize concurrent exchanges for the same customer; two requests
	// reading the same starting balance would both pass the sufficiency
	// check and lose one debit.
	if err := e.Claims.LockCustomer(ctx, customerID); err != nil {
		e.releaseClaim(ctx, customerID, req.RequestID)
		return nil, err
	}
	defer e.Claims.UnlockCustomer(ctx, customerID)

	customer, err := e.Shopify.GetCustomer(ctx, customerID)
	if err != nil {
		e.releaseClaim(ctx, customerID, req.RequestID)
		if shopify.IsNotFound(err) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}

	current, err := e.Shopify.GetPoints(ctx, customerID)
	if err != nil {
		e.releaseClaim(ctx, customerID, req.RequestID)
		return nil, err
	}
	if current < required {
		e.releaseClaim(ctx, customerID, req.RequestID)
		return nil, &InsufficientPointsError{CurrentPoints: current, RequiredPoints: required}
	}

	code, action, err := e.issueReward(ctx, customer.ID, req.DiscountValue)
	if err != nil {
		e.releaseClaim(ctx, customerID, req.RequestID)
		return nil, err
	}

	remaining := current - required
	if err := e.Shopify.SetPoints(ctx, customerID, remaining); err != nil {
		// The reward exists but the debit failed. The claim stays pending so
		// the same request id cannot issue a second reward.
		return nil, fmt.Errorf("reward %s issued but points debit failed: %w", code, err)
	}

	if err := e.Claims.CompleteClaim(ctx, customerID, req.RequestID, code, req.DiscountValue, required, remaining); err != nil {
		// Non-fatal: the exchange itself is done.
		fmt.Printf("rewards: complete claim failed for customer %s: %v\n", customerID, err)
	}

	entry := HistoryEntry{
		Date:         e.now().UTC().Format(time.RFC3339),
		Action:       action,
		PointsUsed:   required,
		DiscountCode: code,
		AmountVND:    req.DiscountValue,
	}
	if err := e.appendHistory(ctx, customerID, entry); err != nil {
		fmt.Printf("rewards: history append failed for customer %s: %v\n", customerID, err)
		if e.AuditFailed != nil {
			e.AuditFailed(ctx, customerID, entry)
		}
	}

	res := Result{
		DiscountCode:    code,
		DiscountValue:   req.DiscountValue,
		PointsUsed:      required,
		RemainingPoints: remaining,
	}
	if e.Notify != nil {
		e.Notify(ctx, customerID, res)
	}
	return &res, nil
}

func (e *Exchanger) releaseClaim(ctx context.Context, customerID, requestID string) {
	if err := e.Claims.ReleaseClaim(ctx, customerID, requestID); err != nil {
		fmt.Printf("rewards: release claim failed for customer %s: %v\n", customerID, err)
	}
}

func (e *Exchanger) issueReward(ctx context.Context, customerID int64, discountValue int64) (code, action string, err error) {
	switch e.RewardKind {
	case config.RewardDiscountCode:
		now := e.now()
		rule, err := e.Shopify.CreateFixedAmountPriceRule(ctx,
			discountRuleTitle, discountValue, customerID,
			now, now.AddDate(0, 0, discountValidDays))
		if err != nil {
			return "", "", fmt.Errorf("create price rule: %w", err)
		}
		dc, err := e.Shopify.CreateDiscountCode(ctx, rule.ID, CodePrefix+generateCode(discountCodeLength))
		if err != nil {
			return "", "", fmt.Errorf("create discount code: %w", err)
		}
		return dc.Code, discountAction, nil

	default: // gift card
		gc, err := e.Shopify.CreateGiftCard(ctx, shopify.GiftCardRequest{
			InitialValue: strconv.FormatInt(discountValue, 10),
			Code:         CodePrefix + generateCode(giftCardCodeLength),
			CustomerID:   customerID,
			Note:         giftCardNote,
			ExpiresOn:    e.Deadline.AddDate(0, 0, -1).Format("2006-01-02"),
		})
		if err != nil {
			return "", "", fmt.Errorf("create gift card: %w", err)
		}
		return gc.Code, giftCardAction, nil
	}
}

// AppendHistory fetches, prepends, truncates, and writes back the history
// metafield. Exported for the audit worker.
func (e *Exchanger) AppendHistory(ctx context.Context, customerID string, entry HistoryEntry) error {
	return e.appendHistory(ctx, customerID, entry)
}

func (e *Exchanger) appendHistory(ctx context.Context, customerID string, entry HistoryEntry) error {
	raw, err := e.Shopify.GetHistoryRaw(ctx, customerID)
	if err != nil {
		return err
	}
	return e.Shopify.SetHistory(ctx, customerID, PrependHistory(raw, entry))
}

// InvalidCustomerError rejects a customer_id with no digits in it.
type InvalidCustomerError struct {
	Raw string
}

func (e *InvalidCustomerError) Error() string {
	return fmt.Sprintf("invalid customer_id %q", e.Raw)
}
