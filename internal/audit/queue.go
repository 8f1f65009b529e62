// Package audit gives history appends an at-least-once fallback. The exchange
// handler writes history inline; when that write fails the entry goes onto an
// SQS queue and the rewards-audit-worker retries it.
package audit

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"helios-backend/internal/rewards"
)

// Message is the queue payload for one deferred history append.
type Message struct {
	CustomerID string               `json:"customer_id"`
	Entry      rewards.HistoryEntry `json:"entry"`
}

// SQSAPI is the subset of the SQS client Enqueue needs.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// NewSQSClient builds an SQS client from the Lambda execution role.
func NewSQSClient(ctx context.Context) (SQSAPI, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return sqs.NewFromConfig(cfg), nil
}

// Enqueue sends one deferred append. A blank queue URL is a no-op.
func Enqueue(ctx context.Context, client SQSAPI, queueURL, customerID string, entry rewards.HistoryEntry) error {
	if queueURL == "" || client == nil {
		return nil
	}
	body, err := json.Marshal(Message{CustomerID: customerID, Entry: entry})
	if err != nil {
		return err
	}
	_, err = client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
	})
	return err
}
