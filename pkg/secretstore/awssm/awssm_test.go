package awssm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confsync/secretconf/pkg/secretstore"
)

type fakeClient struct {
	secrets map[string]string
	deleted map[string]bool
	getErr  map[string]error
	// pageSize forces pagination in ListSecrets.
	pageSize int
	order    []string
}

func (f *fakeClient) ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	start := 0
	if params.NextToken != nil {
		for i, name := range f.order {
			if name == *params.NextToken {
				start = i
				break
			}
		}
	}
	size := f.pageSize
	if size <= 0 {
		size = len(f.order)
	}
	end := start + size
	if end > len(f.order) {
		end = len(f.order)
	}

	out := &secretsmanager.ListSecretsOutput{}
	now := time.Now()
	for _, name := range f.order[start:end] {
		entry := types.SecretListEntry{
			Name:            aws.String(name),
			LastChangedDate: &now,
		}
		if f.deleted[name] {
			entry.DeletedDate = &now
		}
		out.SecretList = append(out.SecretList, entry)
	}
	if end < len(f.order) {
		out.NextToken = aws.String(f.order[end])
	}
	return out, nil
}

func (f *fakeClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	name := *params.SecretId
	if err, ok := f.getErr[name]; ok {
		return nil, err
	}
	value, ok := f.secrets[name]
	if !ok {
		return nil, errors.New("ResourceNotFoundException: Secrets Manager can't find the specified secret")
	}
	return &secretsmanager.GetSecretValueOutput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
		VersionId:    aws.String("v1-" + name),
	}, nil
}

func newTestStore(t *testing.T, client ClientAPI) *Store {
	t.Helper()
	store, err := New(context.Background(), Config{Region: "us-east-1"}, WithClient(client))
	require.NoError(t, err)
	return store
}

func TestNewRequiresRegion(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestGetSecret(t *testing.T) {
	store := newTestStore(t, &fakeClient{secrets: map[string]string{"App--Timeout": "30"}})

	secret, err := store.GetSecret(context.Background(), "App--Timeout")
	require.NoError(t, err)
	assert.Equal(t, "30", secret.Value)
	assert.Equal(t, "v1-App--Timeout", secret.Version)
	assert.True(t, secret.Enabled)
}

func TestGetSecretNotFound(t *testing.T) {
	store := newTestStore(t, &fakeClient{secrets: map[string]string{}})

	_, err := store.GetSecret(context.Background(), "missing")
	assert.True(t, secretstore.IsNotFound(err), "expected NotFoundError, got %v", err)
}

func TestGetSecretThrottled(t *testing.T) {
	store := newTestStore(t, &fakeClient{
		secrets: map[string]string{"busy": "x"},
		getErr:  map[string]error{"busy": errors.New("ThrottlingException: Rate exceeded")},
	})

	_, err := store.GetSecret(context.Background(), "busy")
	assert.True(t, secretstore.IsThrottled(err), "expected ThrottledError, got %v", err)
}

func TestListSecretsPaginates(t *testing.T) {
	client := &fakeClient{
		order:    []string{"a", "b", "c", "d", "e"},
		pageSize: 2,
	}
	store := newTestStore(t, client)

	pager := store.ListSecrets(context.Background())
	var names []string
	pages := 0
	for pager.More() {
		items, err := pager.NextPage(context.Background())
		require.NoError(t, err)
		pages++
		for _, item := range items {
			names = append(names, item.Name)
		}
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, names)
	assert.Equal(t, 3, pages)
}

func TestListSecretsMarksDeletedDisabled(t *testing.T) {
	client := &fakeClient{
		order:   []string{"live", "gone"},
		deleted: map[string]bool{"gone": true},
	}
	store := newTestStore(t, client)

	pager := store.ListSecrets(context.Background())
	items, err := pager.NextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	byName := map[string]secretstore.Item{}
	for _, item := range items {
		byName[item.Name] = item
	}
	assert.True(t, byName["live"].Enabled)
	assert.False(t, byName["gone"].Enabled)
}
