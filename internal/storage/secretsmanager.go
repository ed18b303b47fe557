package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManagerAPI defines the Secrets Manager operations used by the token store.
type SecretsManagerAPI interface {
	// GetSecretValue retrieves a secret value.
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)

	// PutSecretValue stores a secret value.
	PutSecretValue(
		ctx context.Context,
		params *secretsmanager.PutSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.PutSecretValueOutput, error)
}

// TokenStore keeps one provider's OAuth refresh token in AWS Secrets Manager.
type TokenStore struct {
	// client is the Secrets Manager API client.
	client SecretsManagerAPI

	// provider is the provider the token belongs to.
	provider string

	// secretID is the name or ARN of the secret storing the refresh token.
	secretID string
}

// NewTokenStore creates a Secrets Manager-backed token store for provider.
func NewTokenStore(client SecretsManagerAPI, provider string, secretID string) (*TokenStore, error) {
	if client == nil {
		return nil, errors.New("secrets manager client is required")
	}
	if provider == "" {
		return nil, errors.New("provider is required")
	}
	if secretID == "" {
		return nil, errors.New("secret ID is required")
	}

	return &TokenStore{
		client:   client,
		provider: provider,
		secretID: secretID,
	}, nil
}

// RefreshToken returns the provider's current refresh token. A secret without a value yields an empty token.
func (t *TokenStore) RefreshToken(ctx context.Context) (string, error) {
	output, err := t.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(t.secretID),
	})
	if err != nil {
		return "", fmt.Errorf("getting %s refresh token from Secrets Manager: %w", t.provider, err)
	}

	if output.SecretString == nil {
		return "", nil
	}

	return *output.SecretString, nil
}

// SaveRefreshToken stores a rotated refresh token.
func (t *TokenStore) SaveRefreshToken(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}

	_, err := t.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(t.secretID),
		SecretString: aws.String(token),
	})
	if err != nil {
		return fmt.Errorf("putting %s refresh token to Secrets Manager: %w", t.provider, err)
	}

	return nil
}
