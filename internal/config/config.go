package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

const (
	defaultAPIVersion = "2024-10"

	// Last day of the points exchange program (end of 03/03/2026, ICT).
	defaultDeadline = "2026-03-04T00:00:00+07:00"
)

// RewardKind selects which Shopify artifact an exchange produces.
type RewardKind string

const (
	RewardGiftCard     RewardKind = "gift_card"
	RewardDiscountCode RewardKind = "discount_code"
)

// Config is the immutable per-invocation configuration. Handlers receive it
// explicitly instead of reading process env at call sites.
type Config struct {
	Shop        string // your-shop.myshopify.com
	AccessToken string // Admin API access token
	APIVersion  string

	RewardKind RewardKind
	Deadline   time.Time

	// Optional infrastructure. Empty values disable the feature.
	ClaimsTable    string // DynamoDB table for exchange claims + customer locks
	AuditQueueURL  string // SQS queue for history-append retries
	AlertsTopicARN string // SNS topic for exchange alerts
}

// FromEnv loads configuration from process environment. Shop and access token
// are required; everything else has a default or is optional.
func FromEnv() (*Config, error) {
	shop := strings.TrimSpace(os.Getenv("SHOPIFY_SHOP"))
	token := strings.TrimSpace(os.Getenv("SHOPIFY_ACCESS_TOKEN"))
	if shop == "" || token == "" {
		return nil, errors.New("missing SHOPIFY_SHOP or SHOPIFY_ACCESS_TOKEN environment variables")
	}

	apiVersion := strings.TrimSpace(os.Getenv("SHOPIFY_API_VERSION"))
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}

	kind := RewardKind(strings.TrimSpace(os.Getenv("REWARD_KIND")))
	switch kind {
	case RewardGiftCard, RewardDiscountCode:
	case "":
		kind = RewardGiftCard
	default:
		return nil, errors.New("REWARD_KIND must be gift_card or discount_code")
	}

	deadline, err := parseDeadline(os.Getenv("REWARDS_DEADLINE"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Shop:           shop,
		AccessToken:    token,
		APIVersion:     apiVersion,
		RewardKind:     kind,
		Deadline:       deadline,
		ClaimsTable:    strings.TrimSpace(os.Getenv("EXCHANGE_CLAIMS_TABLE")),
		AuditQueueURL:  strings.TrimSpace(os.Getenv("AUDIT_QUEUE_URL")),
		AlertsTopicARN: strings.TrimSpace(os.Getenv("ALERTS_TOPIC_ARN")),
	}, nil
}

func parseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = defaultDeadline
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.New("REWARDS_DEADLINE must be RFC3339")
	}
	return t, nil
}
