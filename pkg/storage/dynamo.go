package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dmphub/dmpsync/pkg/plan"
)

const (
	pkPrefix    = "DMP#"
	skVersion   = "VERSION#"
	skLatest    = "VERSION#latest"
	skTombstone = "TOMBSTONE"
	attrPK      = "PK"
	attrSK      = "SK"
)

// DynamoStore implements RecordStore on a single DynamoDB table with a
// PK/SK key schema.
type DynamoStore struct {
	Client *dynamodb.Client
	Table  string
}

// NewDynamoStore builds a store for the given table.
func NewDynamoStore(cfg aws.Config, table string) *DynamoStore {
	return &DynamoStore{
		Client: dynamodb.NewFromConfig(cfg),
		Table:  table,
	}
}

func sortKey(version string) string {
	switch version {
	case VersionLatest:
		return skLatest
	case VersionTombstone:
		return skTombstone
	default:
		return skVersion + version
	}
}

func (s *DynamoStore) key(id, version string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pkPrefix + id},
		attrSK: &types.AttributeValueMemberS{Value: sortKey(version)},
	}
}

func (s *DynamoStore) Get(ctx context.Context, id, version string) (*plan.Record, error) {
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Table),
		Key:            s.key(id, version),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s@%s: %w", id, version, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	delete(out.Item, attrPK)
	delete(out.Item, attrSK)

	var rec plan.Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s@%s: %w", id, version, err)
	}
	return &rec, nil
}

func (s *DynamoStore) Put(ctx context.Context, id, version string, rec *plan.Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", id, err)
	}
	item[attrPK] = &types.AttributeValueMemberS{Value: pkPrefix + id}
	item[attrSK] = &types.AttributeValueMemberS{Value: sortKey(version)}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.Table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put record %s@%s: %w", id, version, err)
	}
	return nil
}

func (s *DynamoStore) Exists(ctx context.Context, id, version string) (bool, error) {
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(s.Table),
		Key:                  s.key(id, version),
		ProjectionExpression: aws.String(attrPK),
		ConsistentRead:       aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("failed to check record %s@%s: %w", id, version, err)
	}
	return out.Item != nil, nil
}

func (s *DynamoStore) ListVersions(ctx context.Context, id string) ([]VersionRef, error) {
	var refs []VersionRef

	paginator := dynamodb.NewQueryPaginator(s.Client, &dynamodb.QueryInput{
		TableName:              aws.String(s.Table),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pkPrefix + id},
			":sk": &types.AttributeValueMemberS{Value: skVersion},
		},
		ProjectionExpression: aws.String(attrSK),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list versions for %s: %w", id, err)
		}
		for _, item := range page.Items {
			sk, ok := item[attrSK].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			selector := strings.TrimPrefix(sk.Value, skVersion)
			if selector == VersionLatest {
				continue
			}
			ts, err := time.Parse(time.RFC3339, selector)
			if err != nil {
				continue
			}
			refs = append(refs, VersionRef{Timestamp: ts, Locator: selector})
		}
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Timestamp.Before(refs[j].Timestamp) })
	return refs, nil
}
