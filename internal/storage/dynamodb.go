// Package storage provides persistence implementations for the sync orchestrator.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/peteski22/sitebridge/internal/record"
)

const (
	// externalKeyPrefix prefixes items keyed by external id.
	externalKeyPrefix = "ext"

	// internalKeyPrefix prefixes items keyed by internal id.
	internalKeyPrefix = "int"

	// mappingKeyAttr is the mapping table partition key.
	mappingKeyAttr = "pk"
)

// DynamoDBAPI defines the DynamoDB operations used by the stores.
type DynamoDBAPI interface {
	// DeleteItem removes an item from DynamoDB.
	DeleteItem(
		ctx context.Context,
		params *dynamodb.DeleteItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.DeleteItemOutput, error)

	// GetItem retrieves an item from DynamoDB.
	GetItem(
		ctx context.Context,
		params *dynamodb.GetItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.GetItemOutput, error)

	// PutItem stores an item in DynamoDB.
	PutItem(
		ctx context.Context,
		params *dynamodb.PutItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.PutItemOutput, error)

	// Query retrieves items matching a key condition from DynamoDB.
	Query(
		ctx context.Context,
		params *dynamodb.QueryInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.QueryOutput, error)

	// UpdateItem modifies attributes of an existing item in DynamoDB.
	UpdateItem(
		ctx context.Context,
		params *dynamodb.UpdateItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.UpdateItemOutput, error)
}

// MappingStore tracks external record mappings in DynamoDB.
// Each mapping is held as two items, one keyed by external id and one keyed by internal id,
// so it can be resolved from either side.
type MappingStore struct {
	// client is the DynamoDB API client.
	client DynamoDBAPI

	// now returns the current time.
	now func() time.Time

	// tableName is the name of the DynamoDB table.
	tableName string
}

// NewMappingStore creates a new DynamoDB-backed mapping store.
func NewMappingStore(client DynamoDBAPI, tableName string) (*MappingStore, error) {
	if client == nil {
		return nil, errors.New("dynamodb client is required")
	}
	if tableName == "" {
		return nil, errors.New("table name is required")
	}

	return &MappingStore{
		client:    client,
		now:       time.Now,
		tableName: tableName,
	}, nil
}

// Invalidate removes a mapping the provider has confirmed no longer exists.
func (s *MappingStore) Invalidate(ctx context.Context, m record.Mapping) error {
	if err := validateMapping(m); err != nil {
		return err
	}

	for _, key := range []string{
		mappingKey(externalKeyPrefix, m.Provider, m.Type, m.ExternalID),
		mappingKey(internalKeyPrefix, m.Provider, m.Type, m.InternalID),
	} {
		if err := s.delete(ctx, key); err != nil {
			return fmt.Errorf("invalidating mapping: %w", err)
		}
	}

	return nil
}

// LookupExternal returns the external id mapped to an internal record.
func (s *MappingStore) LookupExternal(
	ctx context.Context,
	provider string,
	t record.Type,
	internalID string,
) (string, bool, error) {
	if internalID == "" {
		return "", false, errors.New("internal ID is required")
	}
	return s.lookup(ctx, mappingKey(internalKeyPrefix, provider, t, internalID), "external_id")
}

// LookupInternal returns the internal id mapped to an external record.
func (s *MappingStore) LookupInternal(
	ctx context.Context,
	provider string,
	t record.Type,
	externalID string,
) (string, bool, error) {
	if externalID == "" {
		return "", false, errors.New("external ID is required")
	}
	return s.lookup(ctx, mappingKey(externalKeyPrefix, provider, t, externalID), "internal_id")
}

// Put stores a mapping. When either side was previously mapped to something else, the stale
// counterpart item is removed so the latest mapping wins.
func (s *MappingStore) Put(ctx context.Context, m record.Mapping) error {
	if err := validateMapping(m); err != nil {
		return err
	}

	extKey := mappingKey(externalKeyPrefix, m.Provider, m.Type, m.ExternalID)
	intKey := mappingKey(internalKeyPrefix, m.Provider, m.Type, m.InternalID)

	prevInternal, found, err := s.lookup(ctx, extKey, "internal_id")
	if err != nil {
		return fmt.Errorf("reading existing mapping: %w", err)
	}
	if found && prevInternal != m.InternalID {
		if err := s.delete(ctx, mappingKey(internalKeyPrefix, m.Provider, m.Type, prevInternal)); err != nil {
			return fmt.Errorf("removing stale mapping: %w", err)
		}
	}

	prevExternal, found, err := s.lookup(ctx, intKey, "external_id")
	if err != nil {
		return fmt.Errorf("reading existing mapping: %w", err)
	}
	if found && prevExternal != m.ExternalID {
		if err := s.delete(ctx, mappingKey(externalKeyPrefix, m.Provider, m.Type, prevExternal)); err != nil {
			return fmt.Errorf("removing stale mapping: %w", err)
		}
	}

	updatedAt := &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339)}
	items := []map[string]types.AttributeValue{
		{
			mappingKeyAttr: &types.AttributeValueMemberS{Value: extKey},
			"internal_id":  &types.AttributeValueMemberS{Value: m.InternalID},
			"provider":     &types.AttributeValueMemberS{Value: m.Provider},
			"record_type":  &types.AttributeValueMemberS{Value: string(m.Type)},
			"updated_at":   updatedAt,
		},
		{
			mappingKeyAttr: &types.AttributeValueMemberS{Value: intKey},
			"external_id":  &types.AttributeValueMemberS{Value: m.ExternalID},
			"provider":     &types.AttributeValueMemberS{Value: m.Provider},
			"record_type":  &types.AttributeValueMemberS{Value: string(m.Type)},
			"updated_at":   updatedAt,
		},
	}

	for _, item := range items {
		if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.tableName),
			Item:      item,
		}); err != nil {
			return fmt.Errorf("putting item to DynamoDB: %w", err)
		}
	}

	return nil
}

// delete removes the item with the given key.
func (s *MappingStore) delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			mappingKeyAttr: &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting item from DynamoDB: %w", err)
	}
	return nil
}

// lookup returns the string attribute attr of the item with the given key.
func (s *MappingStore) lookup(ctx context.Context, key string, attr string) (string, bool, error) {
	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			mappingKeyAttr: &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("getting item from DynamoDB: %w", err)
	}

	if output.Item == nil {
		return "", false, nil
	}

	v, ok := output.Item[attr].(*types.AttributeValueMemberS)
	if !ok || v.Value == "" {
		return "", false, nil
	}

	return v.Value, true, nil
}

// mappingKey builds a mapping partition key.
func mappingKey(prefix string, provider string, t record.Type, id string) string {
	return strings.Join([]string{prefix, provider, string(t), id}, "#")
}

// validateMapping checks that every mapping field is set.
func validateMapping(m record.Mapping) error {
	var errs []error
	if m.ExternalID == "" {
		errs = append(errs, errors.New("external ID is required"))
	}
	if m.InternalID == "" {
		errs = append(errs, errors.New("internal ID is required"))
	}
	if m.Provider == "" {
		errs = append(errs, errors.New("provider is required"))
	}
	if m.Type == "" {
		errs = append(errs, errors.New("record type is required"))
	}
	return errors.Join(errs...)
}
