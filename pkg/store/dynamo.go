package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

// DynamoStore keeps records in a table keyed by product_id (hash) and
// user_id (range).
type DynamoStore struct {
	api   dynamodbiface.DynamoDBAPI
	table string
}

// NewDynamoStore creates a store over table.
func NewDynamoStore(api dynamodbiface.DynamoDBAPI, table string) *DynamoStore {
	return &DynamoStore{api: api, table: table}
}

func (s *DynamoStore) itemKey(key Key) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		types.FieldSubjectID: {S: aws.String(key.SubjectID)},
		types.FieldOwnerID:   {S: aws.String(key.OwnerID)},
	}
}

// Get implements Store with a strongly consistent read.
func (s *DynamoStore) Get(ctx context.Context, key Key) (types.SubjectRecord, error) {
	out, err := s.api.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var rec map[string]any
	if err := dynamodbattribute.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return types.SubjectRecord(rec), nil
}

// Merge implements Store with a single SET update. Key attributes are never
// rewritten.
func (s *DynamoStore) Merge(ctx context.Context, key Key, fields map[string]any) error {
	fields = stamp(fields, time.Now())
	delete(fields, types.FieldSubjectID)
	delete(fields, types.FieldOwnerID)

	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	exprNames := make(map[string]*string, len(names))
	exprValues := make(map[string]*dynamodb.AttributeValue, len(names))
	expr := "SET "
	for i, name := range names {
		n, v := fmt.Sprintf("#f%d", i), fmt.Sprintf(":v%d", i)
		av, err := dynamodbattribute.Marshal(fields[name])
		if err != nil {
			return fmt.Errorf("encode field %s: %w", name, err)
		}
		exprNames[n] = aws.String(name)
		exprValues[v] = av
		if i > 0 {
			expr += ", "
		}
		expr += n + " = " + v
	}

	_, err := s.api.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       s.itemKey(key),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	})
	if err != nil {
		return fmt.Errorf("dynamodb update item: %w", err)
	}
	return nil
}

// Consistency implements Store.
func (s *DynamoStore) Consistency() Consistency { return Strong }
