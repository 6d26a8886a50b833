package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/alertdesk/alertdesk/internal/config"
)

func init() {
	Register("awssm", func(cfg *config.Config, _ *sql.DB) (Store, error) {
		return NewAWSSecretsManagerStore(context.Background(), cfg.Secrets.AWS)
	})
}

// SecretsManagerClientAPI defines the interface for AWS Secrets Manager operations.
// This allows for mocking in tests.
type SecretsManagerClientAPI interface {
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
}

// AWSSecretsManagerStore stores provider credentials in AWS Secrets Manager.
type AWSSecretsManagerStore struct {
	client SecretsManagerClientAPI
	prefix string
}

// StoreOption is a functional option for configuring the AWS store
type StoreOption func(*AWSSecretsManagerStore)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerClientAPI) StoreOption {
	return func(s *AWSSecretsManagerStore) {
		s.client = client
	}
}

// NewAWSSecretsManagerStore creates an AWS Secrets Manager backed store.
func NewAWSSecretsManagerStore(ctx context.Context, awsCfg config.AWSSecretsConfig, opts ...StoreOption) (*AWSSecretsManagerStore, error) {
	s := &AWSSecretsManagerStore{prefix: awsCfg.Prefix}

	// Apply options (allows mock client injection)
	for _, opt := range opts {
		opt(s)
	}

	// If no client was provided via options, create a real one
	if s.client == nil {
		var configOpts []func(*awsconfig.LoadOptions) error
		configOpts = append(configOpts, awsconfig.WithRegion(awsCfg.Region))

		// Use static credentials if provided (for LocalStack/testing)
		if awsCfg.AccessKeyID != "" && awsCfg.SecretAccessKey != "" {
			configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(awsCfg.AccessKeyID, awsCfg.SecretAccessKey, ""),
			))
		}

		cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
		if err != nil {
			return nil, fmt.Errorf("secrets: failed to load AWS config: %w", err)
		}

		var clientOpts []func(*secretsmanager.Options)
		if awsCfg.Endpoint != "" {
			endpoint := awsCfg.Endpoint
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		s.client = secretsmanager.NewFromConfig(cfg, clientOpts...)
	}

	return s, nil
}

// secretName applies the deployment prefix to a store key.
func (s *AWSSecretsManagerStore) secretName(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// Write stores value under key, creating the secret on first write and
// putting a new version on subsequent ones.
func (s *AWSSecretsManagerStore) Write(ctx context.Context, key string, value []byte) error {
	name := s.secretName(key)
	secretString := string(value)

	_, err := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         &name,
		SecretString: &secretString,
	})
	if err == nil {
		return nil
	}

	var exists *types.ResourceExistsException
	if !errors.As(err, &exists) {
		return fmt.Errorf("secrets: create %s: %w", key, err)
	}

	_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     &name,
		SecretString: &secretString,
	})
	if err != nil {
		return fmt.Errorf("secrets: write %s: %w", key, err)
	}
	return nil
}

// Read returns the secret stored under key, or ErrSecretNotFound.
func (s *AWSSecretsManagerStore) Read(ctx context.Context, key string) ([]byte, error) {
	name := s.secretName(key)

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &name,
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		return nil, fmt.Errorf("secrets: read %s: %w", key, err)
	}

	if result.SecretString != nil {
		return []byte(*result.SecretString), nil
	}
	if result.SecretBinary != nil {
		return result.SecretBinary, nil
	}
	return nil, fmt.Errorf("secrets: %s has no value", key)
}

// Delete removes the secret under key. Deleting an absent key is not an error.
func (s *AWSSecretsManagerStore) Delete(ctx context.Context, key string) error {
	name := s.secretName(key)
	force := true

	_, err := s.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   &name,
		ForceDeleteWithoutRecovery: &force,
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("secrets: delete %s: %w", key, err)
	}
	return nil
}

func isNotFoundError(err error) bool {
	var notFound *types.ResourceNotFoundException
	return errors.As(err, &notFound)
}
