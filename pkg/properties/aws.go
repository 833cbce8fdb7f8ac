package properties

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// AWSConfig holds configuration for AWS Secrets Manager
type AWSConfig struct {
	Region          string        `yaml:"region"`
	AccessKeyID     string        `yaml:"access_key_id,omitempty"`
	SecretAccessKey string        `yaml:"secret_access_key,omitempty"`
	SecretName      string        `yaml:"secret_name"`
	Endpoint        string        `yaml:"endpoint,omitempty"` // LocalStack or custom endpoints
	PlainKey        string        `yaml:"plain_key,omitempty"`
	Timeout         time.Duration `yaml:"timeout,omitempty"`
}

// Validate checks if the AWSConfig has all required fields set
func (a AWSConfig) Validate() error {
	if a.Region == "" {
		return errors.New("AWS region is required")
	}
	if a.SecretName == "" {
		return errors.New("AWS secret name is required")
	}
	if (a.AccessKeyID == "") != (a.SecretAccessKey == "") {
		return errors.New("access_key_id and secret_access_key must be set together")
	}
	if a.Timeout < 0 {
		return errors.New("AWS timeout cannot be negative")
	}
	return nil
}

// CreateClient creates and configures an AWS Secrets Manager client from this config.
// Implements the config.ClientFactory[*secretsmanager.Client] interface.
// Without static credentials the default chain (IAM role, env vars, shared files) is used.
func (a AWSConfig) CreateClient() (*secretsmanager.Client, error) {
	configOpts := []func(*config.LoadOptions) error{
		config.WithRegion(a.Region),
	}
	if a.Endpoint != "" {
		configOpts = append(configOpts, config.WithBaseEndpoint(a.Endpoint))
	}
	if a.AccessKeyID != "" && a.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(a.AccessKeyID, a.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS configuration")
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// SecretValueGetter is the part of *secretsmanager.Client used by AWSSecrets.
type SecretValueGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecrets reads properties from one AWS Secrets Manager secret.
// A secret holding a JSON object answers for each of its fields. Any other secret string is a
// single value, returned for PlainKey, or for every key when PlainKey is empty.
type AWSSecrets struct {
	client     SecretValueGetter
	secretName string
	plainKey   string
	timeout    time.Duration
}

// NewAWSSecrets reads cfg.SecretName through client. A zero cfg.Timeout selects DefaultTimeout.
func NewAWSSecrets(client SecretValueGetter, cfg AWSConfig) *AWSSecrets {
	return &AWSSecrets{
		client:     client,
		secretName: cfg.SecretName,
		plainKey:   cfg.PlainKey,
		timeout:    cfg.Timeout,
	}
}

// Property fetches the secret on every call. A JSON object secret answers with the field named
// key; a plain secret answers for PlainKey, or for any key when PlainKey is empty.
func (a *AWSSecrets) Property(key string) (string, bool) {
	value, found, err := a.read(key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Str("secret_name", a.secretName).Msg("AWS Secrets Manager lookup failed")
		return "", false
	}
	if found {
		log.Debug().Str("key", key).Str("secret_name", a.secretName).Msg("Retrieved property from AWS Secrets Manager")
	}
	return value, found
}

func (a *AWSSecrets) read(key string) (string, bool, error) {
	ctx, cancel := lookupContext(a.timeout)
	defer cancel()

	result, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(a.secretName),
	})
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to read secret %q", a.secretName)
	}
	if result.SecretString == nil {
		return "", false, errors.Errorf("secret %q has no string value", a.secretName)
	}
	secretString := *result.SecretString

	var secretData map[string]any
	if err := json.Unmarshal([]byte(secretString), &secretData); err == nil {
		raw, ok := secretData[key]
		if !ok || raw == nil {
			return "", false, nil
		}
		if s, ok := raw.(string); ok {
			return s, true, nil
		}
		return fmt.Sprint(raw), true, nil
	}

	if a.plainKey != "" && a.plainKey != key {
		return "", false, nil
	}
	return secretString, true, nil
}

// Close is a no-op; the client needs no explicit release.
func (a *AWSSecrets) Close() error {
	return nil
}
