// Package notify publishes exchange alerts to an SNS topic. Delivery is best
// effort; failures never affect the exchange response.
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSAPI is the subset of the SNS client this package needs.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// NewSNSClient builds an SNS client from the Lambda execution role.
func NewSNSClient(ctx context.Context) (SNSAPI, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return sns.NewFromConfig(cfg), nil
}

// PublishExchange announces a completed exchange. A blank topic ARN is a
// no-op.
func PublishExchange(ctx context.Context, client SNSAPI, topicARN, customerID, code string, pointsUsed, remaining int64) error {
	if topicARN == "" || client == nil {
		return nil
	}
	msg := fmt.Sprintf("Customer %s exchanged %d points for %s (%d points remaining)",
		customerID, pointsUsed, code, remaining)
	_, err := client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Subject:  aws.String("Helios Rewards exchange"),
		Message:  aws.String(msg),
	})
	return err
}
