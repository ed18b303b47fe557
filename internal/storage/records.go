package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/peteski22/sitebridge/internal/record"
)

// externalAttrPrefix prefixes the per-provider external id attributes on a record item.
const externalAttrPrefix = "ext_"

// RecordStore keeps internal records in DynamoDB. Records staged for export carry an
// export_type attribute that keys a sparse secondary index.
type RecordStore struct {
	// client is the DynamoDB API client.
	client DynamoDBAPI

	// now returns the current time.
	now func() time.Time

	// pendingIndex is the name of the export_type GSI.
	pendingIndex string

	// tableName is the name of the DynamoDB table.
	tableName string
}

// NewRecordStore creates a new DynamoDB-backed record store.
func NewRecordStore(client DynamoDBAPI, tableName string, pendingIndex string) (*RecordStore, error) {
	if client == nil {
		return nil, errors.New("dynamodb client is required")
	}
	if tableName == "" {
		return nil, errors.New("table name is required")
	}
	if pendingIndex == "" {
		return nil, errors.New("index name is required")
	}

	return &RecordStore{
		client:       client,
		now:          time.Now,
		pendingIndex: pendingIndex,
		tableName:    tableName,
	}, nil
}

// AttachExternalMapping records the external id a provider assigned to an internal record.
func (s *RecordStore) AttachExternalMapping(
	ctx context.Context,
	internalID string,
	providerID string,
	externalID string,
) error {
	if internalID == "" {
		return errors.New("internal ID is required")
	}
	if providerID == "" {
		return errors.New("provider ID is required")
	}
	if externalID == "" {
		return errors.New("external ID is required")
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"record_id": &types.AttributeValueMemberS{Value: internalID},
		},
		UpdateExpression: aws.String("SET #ext = :ext, updated_at = :updated"),
		ExpressionAttributeNames: map[string]string{
			"#ext": externalAttrPrefix + providerID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ext":     &types.AttributeValueMemberS{Value: externalID},
			":updated": &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("updating item in DynamoDB: %w", err)
	}

	return nil
}

// PendingExport returns every record of type t staged for export.
func (s *RecordStore) PendingExport(ctx context.Context, t record.Type) ([]record.Record, error) {
	var (
		records  []record.Record
		startKey map[string]types.AttributeValue
	)

	for {
		output, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			IndexName:              aws.String(s.pendingIndex),
			KeyConditionExpression: aws.String("export_type = :t"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":t": &types.AttributeValueMemberS{Value: string(t)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("querying DynamoDB: %w", err)
		}

		for _, item := range output.Items {
			rec, err := parseRecord(item)
			if err != nil {
				return nil, fmt.Errorf("parsing item: %w", err)
			}
			records = append(records, rec)
		}

		if len(output.LastEvaluatedKey) == 0 {
			return records, nil
		}
		startKey = output.LastEvaluatedKey
	}
}

// SaveImported upserts a record pulled from a provider. Export staging and external ids are preserved.
func (s *RecordStore) SaveImported(ctx context.Context, t record.Type, rec record.Record) error {
	return s.upsert(ctx, t, rec, "SET record_type = :t, fields = :f, updated_at = :updated")
}

// Stage upserts a record and marks it for export. The writer of internal records owns staging.
func (s *RecordStore) Stage(ctx context.Context, rec record.Record) error {
	return s.upsert(ctx, rec.Type, rec,
		"SET record_type = :t, fields = :f, export_type = :t, updated_at = :updated")
}

// upsert writes the record fields with the given update expression.
func (s *RecordStore) upsert(
	ctx context.Context,
	t record.Type,
	rec record.Record,
	expression string,
) error {
	if rec.ID == "" {
		return errors.New("record ID is required")
	}
	if t == "" {
		return errors.New("record type is required")
	}

	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshaling fields: %w", err)
	}

	values := map[string]types.AttributeValue{
		":t":       &types.AttributeValueMemberS{Value: string(t)},
		":f":       &types.AttributeValueMemberS{Value: string(fields)},
		":updated": &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339)},
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"record_id": &types.AttributeValueMemberS{Value: rec.ID},
		},
		UpdateExpression:          aws.String(expression),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("updating item in DynamoDB: %w", err)
	}

	return nil
}

// parseRecord builds a record from a table item.
func parseRecord(item map[string]types.AttributeValue) (record.Record, error) {
	var rec record.Record

	if v, ok := item["record_id"].(*types.AttributeValueMemberS); ok {
		rec.ID = v.Value
	}
	if v, ok := item["record_type"].(*types.AttributeValueMemberS); ok {
		rec.Type = record.Type(v.Value)
	}
	if v, ok := item["fields"].(*types.AttributeValueMemberS); ok && v.Value != "" {
		if err := json.Unmarshal([]byte(v.Value), &rec.Fields); err != nil {
			return rec, fmt.Errorf("parsing fields: %w", err)
		}
	}
	if rec.ID == "" {
		return rec, errors.New("item has no record_id")
	}

	return rec, nil
}
