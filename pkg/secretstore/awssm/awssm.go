// Package awssm adapts AWS Secrets Manager to the secretstore.Store
// interface using aws-sdk-go-v2.
package awssm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/confsync/secretconf/pkg/secretstore"
)

// ClientAPI is the subset of *secretsmanager.Client the adapter uses,
// extracted so tests can substitute a fake.
type ClientAPI interface {
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Config holds AWS Secrets Manager connection settings.
type Config struct {
	// Region is the AWS region holding the secrets.
	Region string

	// AccessKeyID and SecretAccessKey configure static credentials.
	// When empty the default chain applies (environment, shared config,
	// instance role).
	AccessKeyID     string
	SecretAccessKey string
}

// Store is a secretstore.Store backed by AWS Secrets Manager in one region.
type Store struct {
	name   string
	client ClientAPI
}

// Option configures a Store.
type Option func(*Store)

// WithClient sets a custom Secrets Manager client, for testing.
func WithClient(client ClientAPI) Option {
	return func(s *Store) {
		s.client = client
	}
}

// New creates a Secrets Manager store for the given region.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("awssm: region is required")
	}

	s := &Store{name: "awssm:" + cfg.Region}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		loadOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("awssm: loading AWS config: %w", err)
		}
		s.client = secretsmanager.NewFromConfig(awsCfg)
	}
	return s, nil
}

// Name implements secretstore.Store.
func (s *Store) Name() string {
	return s.name
}

// ListSecrets implements secretstore.Store. Secrets scheduled for
// deletion are reported as disabled.
func (s *Store) ListSecrets(ctx context.Context) secretstore.Pager {
	return &pager{store: s}
}

// GetSecret implements secretstore.Store. The VersionId of the current
// stage serves as the opaque version token.
func (s *Store) GetSecret(ctx context.Context, name string) (secretstore.Secret, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return secretstore.Secret{}, s.classify(name, err)
	}

	secret := secretstore.Secret{
		Name:    name,
		Enabled: true,
	}
	if out.SecretString != nil {
		secret.Value = *out.SecretString
	}
	if out.VersionId != nil {
		secret.Version = *out.VersionId
	}
	if out.CreatedDate != nil {
		secret.Updated = *out.CreatedDate
	}
	return secret, nil
}

// classify translates SDK errors into the shared taxonomy. The SDK
// surfaces service errors by code name, so classification matches on
// those.
func (s *Store) classify(name string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "ResourceNotFoundException"):
		return secretstore.NotFoundError{Store: s.name, Name: name}
	case strings.Contains(msg, "AccessDenied"),
		strings.Contains(msg, "UnrecognizedClientException"),
		strings.Contains(msg, "InvalidSignatureException"),
		strings.Contains(msg, "ExpiredToken"):
		return secretstore.AuthError{Store: s.name, Err: err}
	case strings.Contains(msg, "ThrottlingException"),
		strings.Contains(msg, "TooManyRequests"):
		return secretstore.ThrottledError{Store: s.name, Err: err}
	case strings.Contains(msg, "InternalServiceError"),
		strings.Contains(msg, "ServiceUnavailable"),
		strings.Contains(msg, "connection"),
		strings.Contains(msg, "timeout"):
		return secretstore.TransientError{Store: s.name, Err: err}
	}
	return fmt.Errorf("%s: %w", s.name, err)
}

// pager walks ListSecrets pages via NextToken.
type pager struct {
	store     *Store
	nextToken *string
	started   bool
	exhausted bool
}

func (p *pager) More() bool {
	if !p.started {
		return true
	}
	return !p.exhausted
}

func (p *pager) NextPage(ctx context.Context) ([]secretstore.Item, error) {
	out, err := p.store.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{
		NextToken: p.nextToken,
	})
	if err != nil {
		return nil, p.store.classify("", err)
	}
	p.started = true
	p.nextToken = out.NextToken
	p.exhausted = out.NextToken == nil

	items := make([]secretstore.Item, 0, len(out.SecretList))
	for _, entry := range out.SecretList {
		if entry.Name == nil {
			continue
		}
		item := secretstore.Item{
			Name: *entry.Name,
			// A DeletedDate means the secret is in its recovery window
			// and must not be loaded.
			Enabled: entry.DeletedDate == nil,
		}
		if entry.LastChangedDate != nil {
			item.Updated = *entry.LastChangedDate
		}
		items = append(items, item)
	}
	return items, nil
}
