package azurekv

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confsync/secretconf/pkg/secretstore"
)

// fakeClient is a hand-rolled ClientAPI backed by a map.
type fakeClient struct {
	secrets map[string]azsecrets.Secret
	getErr  map[string]error
	listErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		secrets: make(map[string]azsecrets.Secret),
		getErr:  make(map[string]error),
	}
}

func secretID(name, version string) *azsecrets.ID {
	id := azsecrets.ID(fmt.Sprintf("https://test-vault.vault.azure.net/secrets/%s/%s", name, version))
	return &id
}

func (f *fakeClient) addSecret(name, value, version string, enabled bool) {
	now := time.Now()
	f.secrets[name] = azsecrets.Secret{
		ID:    secretID(name, version),
		Value: to.Ptr(value),
		Attributes: &azsecrets.SecretAttributes{
			Enabled: to.Ptr(enabled),
			Updated: &now,
		},
	}
}

func (f *fakeClient) GetSecret(ctx context.Context, name, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	if err, ok := f.getErr[name]; ok {
		return azsecrets.GetSecretResponse{}, err
	}
	secret, ok := f.secrets[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, &azcore.ResponseError{
			StatusCode: 404,
			ErrorCode:  "SecretNotFound",
		}
	}
	return azsecrets.GetSecretResponse{Secret: secret}, nil
}

func (f *fakeClient) NewListSecretPropertiesPager(options *azsecrets.ListSecretPropertiesOptions) *runtime.Pager[azsecrets.ListSecretPropertiesResponse] {
	fetched := false
	return runtime.NewPager(runtime.PagingHandler[azsecrets.ListSecretPropertiesResponse]{
		More: func(page azsecrets.ListSecretPropertiesResponse) bool {
			return !fetched
		},
		Fetcher: func(ctx context.Context, page *azsecrets.ListSecretPropertiesResponse) (azsecrets.ListSecretPropertiesResponse, error) {
			fetched = true
			if f.listErr != nil {
				return azsecrets.ListSecretPropertiesResponse{}, f.listErr
			}
			var props []*azsecrets.SecretProperties
			for _, secret := range f.secrets {
				props = append(props, &azsecrets.SecretProperties{
					ID:         secret.ID,
					Attributes: secret.Attributes,
				})
			}
			return azsecrets.ListSecretPropertiesResponse{
				SecretPropertiesListResult: azsecrets.SecretPropertiesListResult{
					Value: props,
				},
			}, nil
		},
	})
}

func newTestStore(t *testing.T, client ClientAPI) *Store {
	t.Helper()
	store, err := New(Config{VaultURL: "https://test-vault.vault.azure.net/"}, WithClient(client))
	require.NoError(t, err)
	return store
}

func TestNewRequiresVaultURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "vault URL")
}

func TestName(t *testing.T) {
	store := newTestStore(t, newFakeClient())
	assert.Equal(t, "azurekv:test-vault.vault.azure.net", store.Name())
}

func TestGetSecret(t *testing.T) {
	client := newFakeClient()
	client.addSecret("App--Timeout", "30", "abc123", true)
	store := newTestStore(t, client)

	secret, err := store.GetSecret(context.Background(), "App--Timeout")
	require.NoError(t, err)
	assert.Equal(t, "App--Timeout", secret.Name)
	assert.Equal(t, "30", secret.Value)
	assert.Equal(t, "abc123", secret.Version)
	assert.True(t, secret.Enabled)
}

func TestGetSecretNotFound(t *testing.T) {
	store := newTestStore(t, newFakeClient())

	_, err := store.GetSecret(context.Background(), "missing")
	assert.True(t, secretstore.IsNotFound(err), "expected NotFoundError, got %v", err)
}

func TestGetSecretErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		check      func(error) bool
	}{
		{"unauthorized", 401, secretstore.IsAuth},
		{"forbidden", 403, secretstore.IsAuth},
		{"throttled", 429, secretstore.IsThrottled},
		{"server error", 503, func(err error) bool {
			var te secretstore.TransientError
			return errors.As(err, &te)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient()
			client.getErr["secret"] = &azcore.ResponseError{StatusCode: tt.statusCode}
			store := newTestStore(t, client)

			_, err := store.GetSecret(context.Background(), "secret")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected classification: %v", err)
		})
	}
}

func TestListSecrets(t *testing.T) {
	client := newFakeClient()
	client.addSecret("App--A", "1", "v1", true)
	client.addSecret("App--B", "2", "v1", false)
	store := newTestStore(t, client)

	pager := store.ListSecrets(context.Background())
	var items []secretstore.Item
	for pager.More() {
		page, err := pager.NextPage(context.Background())
		require.NoError(t, err)
		items = append(items, page...)
	}

	require.Len(t, items, 2)
	byName := map[string]secretstore.Item{}
	for _, item := range items {
		byName[item.Name] = item
	}
	assert.True(t, byName["App--A"].Enabled)
	assert.False(t, byName["App--B"].Enabled)
}

func TestListSecretsAuthError(t *testing.T) {
	client := newFakeClient()
	client.listErr = &azcore.ResponseError{StatusCode: 403, ErrorCode: "Forbidden"}
	store := newTestStore(t, client)

	pager := store.ListSecrets(context.Background())
	require.True(t, pager.More())
	_, err := pager.NextPage(context.Background())
	assert.True(t, secretstore.IsAuth(err), "expected AuthError, got %v", err)
}
