package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"helios-backend/internal/audit"
	"helios-backend/internal/config"
	"helios-backend/internal/rewards"
	"helios-backend/internal/shopify"
)

// The exchange handler appends reward history best-effort; entries it could
// not write land on this queue and are replayed here with the full retry
// schedule. Failed records are reported individually so SQS only redelivers
// those.
func handler(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		// Infra issue, fail the whole batch.
		return events.SQSEventResponse{}, err
	}
	ex := &rewards.Exchanger{
		Shopify: shopify.NewClient(cfg.Shop, cfg.AccessToken, cfg.APIVersion),
	}

	failures := make([]events.SQSBatchItemFailure, 0)

	for _, rec := range sqsEvent.Records {
		if err := processOne(ctx, ex, rec.Body); err != nil {
			fmt.Printf("rewards-audit-worker: msgId=%s failed: %v\n", rec.MessageId, err)
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}

	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

func processOne(ctx context.Context, ex *rewards.Exchanger, body string) error {
	var msg audit.Message
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return fmt.Errorf("unmarshal audit message: %w", err)
	}
	if msg.CustomerID == "" {
		return fmt.Errorf("missing customer_id")
	}
	if err := ex.AppendHistory(ctx, msg.CustomerID, msg.Entry); err != nil {
		return fmt.Errorf("append history for customer %s: %w", msg.CustomerID, err)
	}
	return nil
}

func main() { lambda.Start(handler) }
