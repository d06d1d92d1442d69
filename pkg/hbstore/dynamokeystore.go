package hbstore

import (
	"context"
	"fmt"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
)

type dynamoAPIKey struct {
	Key         string `dynamodbav:"api_key"`
	Description string `dynamodbav:"description"`
	CreatedAt   int64  `dynamodbav:"created_at"`
}

type DynamoKeyStore struct {
	db    dynamodbiface.DynamoDBAPI
	table *string
}

var _ KeyStore = (*DynamoKeyStore)(nil)

func NewDynamoKeyStore(db dynamodbiface.DynamoDBAPI, table string) *DynamoKeyStore {
	return &DynamoKeyStore{
		db:    db,
		table: aws.String(table),
	}
}

func (d *DynamoKeyStore) LookupKey(ctx context.Context, key string) (*hbdomain.APIKey, error) {
	out, err := d.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      d.table,
		Key:            apiKeyKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, unavailable(err)
	}

	if len(out.Item) == 0 {
		return nil, notFound("API key")
	}

	return unmarshalAPIKey(out.Item)
}

func (d *DynamoKeyStore) PutKey(ctx context.Context, key hbdomain.APIKey) error {
	item, err := dynamodbattribute.MarshalMap(dynamoAPIKey{
		Key:         key.Key,
		Description: key.Description,
		CreatedAt:   key.CreatedAt.Unix(),
	})
	if err != nil {
		return err
	}

	if _, err := d.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:           d.table,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(api_key)"),
	}); err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("%w: API key already exists", ErrPreconditionFailed)
		}

		return unavailable(err)
	}

	return nil
}

func (d *DynamoKeyStore) ListKeys(ctx context.Context) ([]hbdomain.APIKey, error) {
	keys := []hbdomain.APIKey{}
	var unmarshalErr error

	if err := d.db.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName: d.table,
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, item := range page.Items {
			key, err := unmarshalAPIKey(item)
			if err != nil {
				unmarshalErr = err
				return false
			}

			keys = append(keys, *key)
		}

		return true
	}); err != nil {
		return nil, unavailable(err)
	}

	return keys, unmarshalErr
}

func (d *DynamoKeyStore) DeleteKey(ctx context.Context, key string) error {
	if _, err := d.db.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName:           d.table,
		Key:                 apiKeyKey(key),
		ConditionExpression: aws.String("attribute_exists(api_key)"),
	}); err != nil {
		if isConditionalCheckFailed(err) {
			return notFound("API key")
		}

		return unavailable(err)
	}

	return nil
}

func unmarshalAPIKey(item map[string]*dynamodb.AttributeValue) (*hbdomain.APIKey, error) {
	record := dynamoAPIKey{}
	if err := dynamodbattribute.UnmarshalMap(item, &record); err != nil {
		return nil, fmt.Errorf("unmarshalAPIKey: %w", err)
	}

	return &hbdomain.APIKey{
		Key:         record.Key,
		Description: record.Description,
		CreatedAt:   epoch(record.CreatedAt),
	}, nil
}

func apiKeyKey(key string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		"api_key": str(key),
	}
}
