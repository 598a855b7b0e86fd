// Package gcpsm adapts Google Cloud Secret Manager to the
// secretstore.Store interface.
package gcpsm

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/confsync/secretconf/pkg/secretstore"
)

// SecretIterator iterates secrets, yielding iterator.Done at the end.
type SecretIterator interface {
	Next() (*secretmanagerpb.Secret, error)
}

// ClientAPI is the subset of the Secret Manager client the adapter
// uses, extracted so tests can substitute a fake.
type ClientAPI interface {
	ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) SecretIterator
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// Config holds GCP Secret Manager connection settings.
type Config struct {
	// ProjectID is the GCP project holding the secrets.
	ProjectID string

	// ServiceAccountKeyPath optionally points at a service account key
	// file. When empty, Application Default Credentials apply.
	ServiceAccountKeyPath string
}

// Store is a secretstore.Store backed by Secret Manager in one project.
type Store struct {
	name    string
	project string
	client  ClientAPI
}

// Option configures a Store.
type Option func(*Store)

// WithClient sets a custom Secret Manager client, for testing.
func WithClient(client ClientAPI) Option {
	return func(s *Store) {
		s.client = client
	}
}

// New creates a Secret Manager store for the given project.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("gcpsm: project ID is required")
	}

	s := &Store{
		name:    "gcpsm:" + cfg.ProjectID,
		project: cfg.ProjectID,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		var clientOpts []option.ClientOption
		if cfg.ServiceAccountKeyPath != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.ServiceAccountKeyPath))
		}
		client, err := secretmanager.NewClient(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("gcpsm: creating client: %w", err)
		}
		s.client = realClient{client}
	}
	return s, nil
}

// realClient narrows *secretmanager.Client to ClientAPI.
type realClient struct {
	c *secretmanager.Client
}

func (r realClient) ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) SecretIterator {
	return r.c.ListSecrets(ctx, req)
}

func (r realClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	return r.c.AccessSecretVersion(ctx, req)
}

// Name implements secretstore.Store.
func (s *Store) Name() string {
	return s.name
}

// ListSecrets implements secretstore.Store. Secret Manager has no
// enabled flag on the secret itself, so every listed secret is enabled;
// version-level state shows up as a fetch failure instead.
func (s *Store) ListSecrets(ctx context.Context) secretstore.Pager {
	it := s.client.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{
		Parent: "projects/" + s.project,
	})
	return &pager{store: s, it: it}
}

// GetSecret implements secretstore.Store. It accesses the latest
// version; the version resource name serves as the opaque version token.
func (s *Store) GetSecret(ctx context.Context, name string) (secretstore.Secret, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.project, name),
	})
	if err != nil {
		return secretstore.Secret{}, s.classify(name, err)
	}

	secret := secretstore.Secret{
		Name:    name,
		Enabled: true,
		Version: resp.GetName(),
	}
	if payload := resp.GetPayload(); payload != nil {
		secret.Value = string(payload.GetData())
	}
	return secret, nil
}

// classify translates gRPC status codes into the shared taxonomy.
func (s *Store) classify(name string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return secretstore.NotFoundError{Store: s.name, Name: name}
	case codes.PermissionDenied, codes.Unauthenticated:
		return secretstore.AuthError{Store: s.name, Err: err}
	case codes.ResourceExhausted:
		return secretstore.ThrottledError{Store: s.name, Err: err}
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
		return secretstore.TransientError{Store: s.name, Err: err}
	}
	return fmt.Errorf("%s: %w", s.name, err)
}

// pager adapts the streaming iterator to the page-at-a-time contract.
// Pages are synthesized in fixed-size chunks.
type pager struct {
	store     *Store
	it        SecretIterator
	exhausted bool
}

const pageSize = 50

func (p *pager) More() bool {
	return !p.exhausted
}

func (p *pager) NextPage(ctx context.Context) ([]secretstore.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var items []secretstore.Item
	for len(items) < pageSize {
		secret, err := p.it.Next()
		if err == iterator.Done {
			p.exhausted = true
			break
		}
		if err != nil {
			p.exhausted = true
			return nil, p.store.classify("", err)
		}

		// Resource names look like projects/<p>/secrets/<name>.
		full := secret.GetName()
		short := full
		if idx := strings.LastIndex(full, "/secrets/"); idx >= 0 {
			short = full[idx+len("/secrets/"):]
		}
		item := secretstore.Item{
			Name:    short,
			Enabled: true,
		}
		if ct := secret.GetCreateTime(); ct != nil {
			item.Updated = ct.AsTime()
		}
		items = append(items, item)
	}
	return items, nil
}
