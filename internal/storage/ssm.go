package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// lastSyncSuffix names the per-provider last successful sync parameter.
const lastSyncSuffix = "last-sync-time"

// SSMAPI defines the SSM operations used by the state store.
type SSMAPI interface {
	// GetParameter retrieves a parameter from SSM.
	GetParameter(
		ctx context.Context,
		params *ssm.GetParameterInput,
		optFns ...func(*ssm.Options),
	) (*ssm.GetParameterOutput, error)

	// PutParameter stores a parameter in SSM.
	PutParameter(
		ctx context.Context,
		params *ssm.PutParameterInput,
		optFns ...func(*ssm.Options),
	) (*ssm.PutParameterOutput, error)
}

// StateStore keeps per-provider sync state in AWS SSM Parameter Store under a common prefix.
type StateStore struct {
	// client is the SSM API client.
	client SSMAPI

	// prefix is the parameter path prefix, without a trailing slash.
	prefix string
}

// NewStateStore creates a new SSM-backed state store. Parameters are named <prefix>/<provider>/last-sync-time.
func NewStateStore(client SSMAPI, prefix string) (*StateStore, error) {
	if client == nil {
		return nil, errors.New("ssm client is required")
	}
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return nil, errors.New("parameter prefix is required")
	}

	return &StateStore{
		client: client,
		prefix: prefix,
	}, nil
}

// LastSyncTime returns when the provider last completed a successful cycle, zero if never.
func (s *StateStore) LastSyncTime(ctx context.Context, provider string) (time.Time, error) {
	if provider == "" {
		return time.Time{}, errors.New("provider is required")
	}

	output, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(s.parameterName(provider)),
	})
	if err != nil {
		// Parameter not found is not an error - return zero time.
		var notFoundErr *types.ParameterNotFound
		if errors.As(err, &notFoundErr) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("getting parameter from SSM: %w", err)
	}

	if output.Parameter == nil || output.Parameter.Value == nil {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, *output.Parameter.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time from parameter: %w", err)
	}

	return t, nil
}

// SetLastSyncTime records a successful cycle for the provider.
func (s *StateStore) SetLastSyncTime(ctx context.Context, provider string, t time.Time) error {
	if provider == "" {
		return errors.New("provider is required")
	}

	_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(s.parameterName(provider)),
		Overwrite: aws.Bool(true),
		Type:      types.ParameterTypeString,
		Value:     aws.String(t.UTC().Format(time.RFC3339)),
	})
	if err != nil {
		return fmt.Errorf("putting parameter to SSM: %w", err)
	}

	return nil
}

// parameterName returns the last-sync parameter for provider.
func (s *StateStore) parameterName(provider string) string {
	return s.prefix + "/" + provider + "/" + lastSyncSuffix
}
