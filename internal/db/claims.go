package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// One table holds both exchange claims (at-most-once per request id) and
// short-lived per-customer locks. Claims use PK EXCHANGE#<customer>#<request>,
// locks use PK LOCK#<customer>.

const (
	claimTTL = 7 * 24 * time.Hour
	lockTTL  = 60 * time.Second
)

// ErrCustomerBusy means another exchange currently holds the customer lock.
var ErrCustomerBusy = errors.New("another exchange is in progress for this customer")

// DynamoAPI is the subset of the DynamoDB client the claims store needs.
// Narrowed for fakes in tests.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Claim records one exchange request. Completed claims carry the result so a
// replayed request id can be answered without re-running the sequence.
type Claim struct {
	PK             string `dynamodbav:"PK"`
	CustomerID     string `dynamodbav:"CustomerID"`
	RequestID      string `dynamodbav:"RequestID"`
	Status         string `dynamodbav:"Status"` // pending | completed
	DiscountCode   string `dynamodbav:"DiscountCode,omitempty"`
	DiscountValue  int64  `dynamodbav:"DiscountValue,omitempty"`
	PointsUsed     int64  `dynamodbav:"PointsUsed,omitempty"`
	RemainingPoint int64  `dynamodbav:"RemainingPoints,omitempty"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
	ExpiresAt      int64  `dynamodbav:"ExpiresAt"`
}

// ClaimStore serializes and deduplicates exchange requests against one
// DynamoDB table. A store with an empty table name is a no-op: every claim
// is accepted and nothing is recorded, matching the original system's
// unguarded behavior.
type ClaimStore struct {
	Client DynamoAPI
	Table  string
}

func (s *ClaimStore) enabled() bool {
	return s != nil && s.Client != nil && strings.TrimSpace(s.Table) != ""
}

func claimPK(customerID, requestID string) string {
	return fmt.Sprintf("EXCHANGE#%s#%s", customerID, requestID)
}

func lockPK(customerID string) string {
	return fmt.Sprintf("LOCK#%s", customerID)
}

// ClaimExchange records the request id with a conditional put. It returns the
// existing claim when the id was seen before, otherwise nil.
func (s *ClaimStore) ClaimExchange(ctx context.Context, customerID, requestID string) (*Claim, error) {
	if !s.enabled() || strings.TrimSpace(requestID) == "" {
		return nil, nil
	}

	now := time.Now().UTC()
	_, err := s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.Table),
		Item: map[string]types.AttributeValue{
			"PK":         &types.AttributeValueMemberS{Value: claimPK(customerID, requestID)},
			"CustomerID": &types.AttributeValueMemberS{Value: customerID},
			"RequestID":  &types.AttributeValueMemberS{Value: requestID},
			"Status":     &types.AttributeValueMemberS{Value: "pending"},
			"CreatedAt":  &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			"ExpiresAt":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(claimTTL).Unix())},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return s.GetClaim(ctx, customerID, requestID)
		}
		return nil, err
	}
	return nil, nil
}

// GetClaim loads a claim by customer and request id; nil when absent.
func (s *ClaimStore) GetClaim(ctx context.Context, customerID, requestID string) (*Claim, error) {
	if !s.enabled() {
		return nil, nil
	}
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: claimPK(customerID, requestID)},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	var claim Claim
	if err := attributevalue.UnmarshalMap(out.Item, &claim); err != nil {
		return nil, err
	}
	return &claim, nil
}

// CompleteClaim stores the exchange result on the claim record.
func (s *ClaimStore) CompleteClaim(ctx context.Context, customerID, requestID, code string, value, pointsUsed, remaining int64) error {
	if !s.enabled() || strings.TrimSpace(requestID) == "" {
		return nil
	}
	_, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.Table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: claimPK(customerID, requestID)},
		},
		UpdateExpression: aws.String("SET #st=:s, DiscountCode=:c, DiscountValue=:v, PointsUsed=:p, RemainingPoints=:r"),
		ExpressionAttributeNames: map[string]string{
			"#st": "Status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: "completed"},
			":c": &types.AttributeValueMemberS{Value: code},
			":v": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", value)},
			":p": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", pointsUsed)},
			":r": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", remaining)},
		},
	})
	return err
}

// ReleaseClaim removes a pending claim after a failed exchange so the same
// request id can be retried.
func (s *ClaimStore) ReleaseClaim(ctx context.Context, customerID, requestID string) error {
	if !s.enabled() || strings.TrimSpace(requestID) == "" {
		return nil
	}
	_, err := s.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.Table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: claimPK(customerID, requestID)},
		},
	})
	return err
}

// LockCustomer serializes exchanges per customer with a conditional put. An
// expired lock (crashed invocation) is claimable again after lockTTL.
func (s *ClaimStore) LockCustomer(ctx context.Context, customerID string) error {
	if !s.enabled() {
		return nil
	}
	now := time.Now().UTC()
	_, err := s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.Table),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: lockPK(customerID)},
			"ExpiresAt": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(lockTTL).Unix())},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())},
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return ErrCustomerBusy
		}
		return err
	}
	return nil
}

// UnlockCustomer releases the per-customer lock. Best effort: an unreleased
// lock expires on its own.
func (s *ClaimStore) UnlockCustomer(ctx context.Context, customerID string) {
	if !s.enabled() {
		return
	}
	_, _ = s.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.Table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: lockPK(customerID)},
		},
	})
}
