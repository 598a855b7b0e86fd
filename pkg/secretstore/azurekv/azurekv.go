// Package azurekv adapts Azure Key Vault to the secretstore.Store
// interface using the azsecrets SDK.
package azurekv

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/confsync/secretconf/pkg/secretstore"
)

// ClientAPI is the subset of *azsecrets.Client the adapter uses,
// extracted so tests can substitute a fake.
type ClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	NewListSecretPropertiesPager(options *azsecrets.ListSecretPropertiesOptions) *runtime.Pager[azsecrets.ListSecretPropertiesResponse]
}

// Config holds Azure Key Vault connection settings.
type Config struct {
	// VaultURL is the vault endpoint, e.g. https://my-vault.vault.azure.net/.
	VaultURL string

	// TenantID, ClientID and ClientSecret configure service principal
	// authentication. Ignored when UseManagedIdentity is set.
	TenantID     string
	ClientID     string
	ClientSecret string

	// UseManagedIdentity selects managed identity authentication.
	UseManagedIdentity bool

	// UserAssignedID selects a user-assigned managed identity. Empty
	// means the system-assigned one.
	UserAssignedID string
}

// Store is a secretstore.Store backed by one Azure Key Vault.
type Store struct {
	name   string
	client ClientAPI
}

// Option configures a Store.
type Option func(*Store)

// WithClient sets a custom Key Vault client, for testing.
func WithClient(client ClientAPI) Option {
	return func(s *Store) {
		s.client = client
	}
}

// New creates a Key Vault store. Credentials are resolved in order:
// managed identity when requested, service principal when a client
// secret is given, DefaultAzureCredential otherwise (environment,
// workload identity, Azure CLI).
func New(cfg Config, opts ...Option) (*Store, error) {
	if cfg.VaultURL == "" {
		return nil, fmt.Errorf("azurekv: vault URL is required (e.g. https://my-vault.vault.azure.net/)")
	}
	parsed, err := url.Parse(cfg.VaultURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("azurekv: invalid vault URL %q", cfg.VaultURL)
	}

	s := &Store{name: "azurekv:" + parsed.Host}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		client, err := newClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("azurekv: creating client: %w", err)
		}
		s.client = client
	}
	return s, nil
}

func newClient(cfg Config) (*azsecrets.Client, error) {
	var cred azcore.TokenCredential
	var err error

	switch {
	case cfg.UseManagedIdentity && cfg.UserAssignedID != "":
		cred, err = azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(cfg.UserAssignedID),
		})
	case cfg.UseManagedIdentity:
		cred, err = azidentity.NewManagedIdentityCredential(nil)
	case cfg.ClientSecret != "":
		cred, err = azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	default:
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("creating credential: %w", err)
	}

	return azsecrets.NewClient(cfg.VaultURL, cred, nil)
}

// Name implements secretstore.Store.
func (s *Store) Name() string {
	return s.name
}

// ListSecrets implements secretstore.Store.
func (s *Store) ListSecrets(ctx context.Context) secretstore.Pager {
	return &pager{
		store: s.name,
		inner: s.client.NewListSecretPropertiesPager(nil),
	}
}

// GetSecret implements secretstore.Store. It always fetches the current
// version of the secret.
func (s *Store) GetSecret(ctx context.Context, name string) (secretstore.Secret, error) {
	resp, err := s.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return secretstore.Secret{}, s.classify(name, err)
	}

	secret := secretstore.Secret{
		Name:    name,
		Enabled: true,
	}
	if resp.Value != nil {
		secret.Value = *resp.Value
	}
	if resp.ContentType != nil {
		secret.ContentType = *resp.ContentType
	}
	if resp.ID != nil {
		secret.Version = resp.ID.Version()
	}
	if resp.Attributes != nil {
		if resp.Attributes.Enabled != nil {
			secret.Enabled = *resp.Attributes.Enabled
		}
		if resp.Attributes.Updated != nil {
			secret.Updated = *resp.Attributes.Updated
		}
	}
	if len(resp.Tags) > 0 {
		secret.Tags = make(map[string]string, len(resp.Tags))
		for k, v := range resp.Tags {
			if v != nil {
				secret.Tags[k] = *v
			}
		}
	}
	return secret, nil
}

// classify translates azcore response errors into the shared taxonomy.
func (s *Store) classify(name string, err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case 404:
			return secretstore.NotFoundError{Store: s.name, Name: name}
		case 401, 403:
			return secretstore.AuthError{Store: s.name, Message: respErr.ErrorCode, Err: err}
		case 429:
			return secretstore.ThrottledError{Store: s.name, Err: err}
		}
		if respErr.StatusCode >= 500 {
			return secretstore.TransientError{Store: s.name, Err: err}
		}
	}
	return fmt.Errorf("%s: %w", s.name, err)
}

type pager struct {
	store string
	inner *runtime.Pager[azsecrets.ListSecretPropertiesResponse]
}

func (p *pager) More() bool {
	return p.inner.More()
}

func (p *pager) NextPage(ctx context.Context) ([]secretstore.Item, error) {
	page, err := p.inner.NextPage(ctx)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			switch respErr.StatusCode {
			case 401, 403:
				return nil, secretstore.AuthError{Store: p.store, Message: respErr.ErrorCode, Err: err}
			case 429:
				return nil, secretstore.ThrottledError{Store: p.store, Err: err}
			}
			if respErr.StatusCode >= 500 {
				return nil, secretstore.TransientError{Store: p.store, Err: err}
			}
		}
		return nil, fmt.Errorf("%s: listing secrets: %w", p.store, err)
	}

	items := make([]secretstore.Item, 0, len(page.Value))
	for _, props := range page.Value {
		if props == nil || props.ID == nil {
			continue
		}
		item := secretstore.Item{
			Name:    props.ID.Name(),
			Enabled: true,
		}
		if props.Attributes != nil {
			if props.Attributes.Enabled != nil {
				item.Enabled = *props.Attributes.Enabled
			}
			if props.Attributes.Updated != nil {
				item.Updated = *props.Attributes.Updated
			}
		}
		items = append(items, item)
	}
	return items, nil
}
