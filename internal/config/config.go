// Package config provides configuration loading from environment variables and the local config file.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/peteski22/sitebridge/internal/auth"
)

const (
	// EnvDynamoDBMappingsTable is the DynamoDB table holding external record mappings.
	EnvDynamoDBMappingsTable = "DYNAMODB_MAPPINGS_TABLE"

	// EnvDynamoDBRecordsTable is the DynamoDB table holding internal records.
	EnvDynamoDBRecordsTable = "DYNAMODB_RECORDS_TABLE"

	// EnvSyncConcurrency limits parallel provider cycles.
	EnvSyncConcurrency = "SYNC_CONCURRENCY"
)

// Autodesk holds Autodesk Construction Cloud configuration.
type Autodesk struct {
	// BaseURL overrides the API base URL.
	BaseURL string `env:"BASE_URL" yaml:"base_url"`

	// ClientID is the OAuth client identifier.
	ClientID string `env:"CLIENT_ID" yaml:"client_id"`

	// ClientSecret is the OAuth client secret.
	ClientSecret string `env:"CLIENT_SECRET" yaml:"client_secret"`

	// ProjectID is the issues and RFIs container id of the project.
	ProjectID string `env:"PROJECT_ID" yaml:"project_id"`

	// RedirectURI is the OAuth redirect URI registered with Autodesk.
	RedirectURI string `env:"REDIRECT_URI,default=http://localhost:8765/callback" yaml:"redirect_uri"`

	// RefreshToken seeds the OAuth session when no token store holds one.
	RefreshToken string `env:"REFRESH_TOKEN" yaml:"refresh_token"`

	// RefreshTokenSecretARN is the Secrets Manager ARN storing the refresh token.
	RefreshTokenSecretARN string `env:"REFRESH_TOKEN_SECRET_ARN" yaml:"refresh_token_secret_arn"`
}

// Credential returns the Autodesk credential set.
func (a Autodesk) Credential() auth.Credential {
	return auth.Credential{
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		RedirectURI:  a.RedirectURI,
		RefreshToken: a.RefreshToken,
	}
}

// DynamoDB holds AWS DynamoDB configuration.
type DynamoDB struct {
	// MappingsTable is the table holding external record mappings.
	MappingsTable string `env:"MAPPINGS_TABLE" yaml:"mappings_table"`

	// PendingIndex is the sparse index over records staged for export.
	PendingIndex string `env:"PENDING_INDEX,default=PendingExportIndex" yaml:"pending_index"`

	// RecordsTable is the table holding internal records.
	RecordsTable string `env:"RECORDS_TABLE" yaml:"records_table"`
}

// Fieldlens holds Fieldlens configuration.
type Fieldlens struct {
	// AccessToken is an OAuth access token, used when no API key is set.
	AccessToken string `env:"ACCESS_TOKEN" yaml:"access_token"`

	// APIKey is the Fieldlens API key.
	APIKey string `env:"API_KEY" yaml:"api_key"`

	// BaseURL overrides the API base URL.
	BaseURL string `env:"BASE_URL" yaml:"base_url"`

	// ProjectID is the Fieldlens project identifier.
	ProjectID string `env:"PROJECT_ID" yaml:"project_id"`
}

// Credential returns the Fieldlens credential set.
func (f Fieldlens) Credential() auth.Credential {
	return auth.Credential{AccessToken: f.AccessToken, APIKey: f.APIKey}
}

// PlanGrid holds PlanGrid configuration.
type PlanGrid struct {
	// AccessToken is an OAuth access token, used when no API key is set.
	AccessToken string `env:"ACCESS_TOKEN" yaml:"access_token"`

	// APIKey is the PlanGrid API key.
	APIKey string `env:"API_KEY" yaml:"api_key"`

	// BaseURL overrides the API base URL.
	BaseURL string `env:"BASE_URL" yaml:"base_url"`

	// ProjectID is the PlanGrid project UID.
	ProjectID string `env:"PROJECT_ID" yaml:"project_id"`
}

// Credential returns the PlanGrid credential set.
func (p PlanGrid) Credential() auth.Credential {
	return auth.Credential{AccessToken: p.AccessToken, APIKey: p.APIKey}
}

// Procore holds Procore configuration.
type Procore struct {
	// BaseURL overrides the API base URL.
	BaseURL string `env:"BASE_URL" yaml:"base_url"`

	// ClientID is the OAuth client identifier.
	ClientID string `env:"CLIENT_ID" yaml:"client_id"`

	// ClientSecret is the OAuth client secret.
	ClientSecret string `env:"CLIENT_SECRET" yaml:"client_secret"`

	// CompanyID is the Procore company the project belongs to.
	CompanyID string `env:"COMPANY_ID" yaml:"company_id"`

	// ProjectID is the Procore project identifier.
	ProjectID string `env:"PROJECT_ID" yaml:"project_id"`

	// RedirectURI is the OAuth redirect URI registered with Procore.
	RedirectURI string `env:"REDIRECT_URI,default=http://localhost:8765/callback" yaml:"redirect_uri"`

	// RefreshToken seeds the OAuth session when no token store holds one.
	RefreshToken string `env:"REFRESH_TOKEN" yaml:"refresh_token"`

	// RefreshTokenSecretARN is the Secrets Manager ARN storing the refresh token.
	RefreshTokenSecretARN string `env:"REFRESH_TOKEN_SECRET_ARN" yaml:"refresh_token_secret_arn"`
}

// Credential returns the Procore credential set.
func (p Procore) Credential() auth.Credential {
	return auth.Credential{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURI:  p.RedirectURI,
		RefreshToken: p.RefreshToken,
	}
}

// Sage holds Sage 300 Construction configuration.
type Sage struct {
	// BaseURL overrides the API base URL.
	BaseURL string `env:"BASE_URL" yaml:"base_url"`

	// CompanyDatabase selects the company database.
	CompanyDatabase string `env:"COMPANY_DATABASE" yaml:"company_database"`

	// Password is the Sage user's password.
	Password string `env:"PASSWORD" yaml:"password"`

	// ProjectID is the Sage job number.
	ProjectID string `env:"PROJECT_ID" yaml:"project_id"`

	// Username is the Sage user name.
	Username string `env:"USERNAME" yaml:"username"`
}

// Credential returns the Sage credential set.
func (s Sage) Credential() auth.Credential {
	return auth.Credential{
		CompanyDatabase: s.CompanyDatabase,
		Password:        s.Password,
		Username:        s.Username,
	}
}

// SSM holds AWS Systems Manager Parameter Store configuration.
type SSM struct {
	// ParameterPrefix prefixes the per-provider last sync parameters.
	ParameterPrefix string `env:"PARAMETER_PREFIX,default=/sitebridge/last-sync" yaml:"parameter_prefix"`
}

// Sync holds orchestration settings.
type Sync struct {
	// Concurrency limits parallel provider cycles. Zero means no limit.
	Concurrency int `env:"CONCURRENCY,default=0" yaml:"concurrency"`

	// DryRun logs exports and writes instead of performing them.
	DryRun bool `env:"DRY_RUN,default=false" yaml:"dry_run"`

	// Parallel runs providers concurrently.
	Parallel bool `env:"PARALLEL,default=false" yaml:"parallel"`

	// RequestTimeout bounds each provider HTTP request.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=30s" yaml:"request_timeout"`

	// Since overrides every provider's last sync time when set.
	Since Timestamp `env:"SINCE" yaml:"since"`
}

// Settings holds all configuration for the application.
type Settings struct {
	// Autodesk contains Autodesk Construction Cloud settings.
	Autodesk Autodesk `env:",prefix=AUTODESK_" yaml:"autodesk"`

	// DynamoDB contains AWS DynamoDB settings.
	DynamoDB DynamoDB `env:",prefix=DYNAMODB_" yaml:"dynamodb"`

	// Fieldlens contains Fieldlens settings.
	Fieldlens Fieldlens `env:",prefix=FIELDLENS_" yaml:"fieldlens"`

	// PlanGrid contains PlanGrid settings.
	PlanGrid PlanGrid `env:",prefix=PLANGRID_" yaml:"plangrid"`

	// Procore contains Procore settings.
	Procore Procore `env:",prefix=PROCORE_" yaml:"procore"`

	// Sage contains Sage settings.
	Sage Sage `env:",prefix=SAGE_" yaml:"sage"`

	// SSM contains AWS Systems Manager Parameter Store settings.
	SSM SSM `env:",prefix=SSM_" yaml:"ssm"`

	// Sync contains orchestration settings.
	Sync Sync `env:",prefix=SYNC_" yaml:"sync"`
}

// HasDynamoDB reports whether both DynamoDB tables are configured.
func (s *Settings) HasDynamoDB() bool {
	return s.DynamoDB.MappingsTable != "" && s.DynamoDB.RecordsTable != ""
}

// validate checks settings shared by every entry point.
func (s *Settings) validate() error {
	var errs []error

	if s.Sync.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative", EnvSyncConcurrency))
	}
	if s.Sync.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	return errors.Join(errs...)
}

// validateAWS checks the settings the Lambda deployment requires.
func (s *Settings) validateAWS() error {
	var errs []error

	if s.DynamoDB.MappingsTable == "" {
		errs = append(errs, requiredError(EnvDynamoDBMappingsTable))
	}
	if s.DynamoDB.RecordsTable == "" {
		errs = append(errs, requiredError(EnvDynamoDBRecordsTable))
	}

	return errors.Join(errs...)
}

// Load reads configuration from environment variables for the Lambda deployment.
// Provider credentials are optional; a provider without them is skipped at sync time.
func Load(ctx context.Context) (*Settings, error) {
	return load(ctx, envconfig.OsLookuper())
}

// load reads configuration through lookuper.
func load(ctx context.Context, lookuper envconfig.Lookuper) (*Settings, error) {
	var cfg Settings

	if err := process(ctx, &cfg, lookuper); err != nil {
		return nil, err
	}

	if err := errors.Join(cfg.validate(), cfg.validateAWS()); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// process fills every zero field of cfg from lookuper, then from the tag defaults.
func process(ctx context.Context, cfg *Settings, lookuper envconfig.Lookuper) error {
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return fmt.Errorf("processing environment: %w", err)
	}
	return nil
}

func requiredError(envVar string) error {
	return fmt.Errorf("%s is required", envVar)
}
