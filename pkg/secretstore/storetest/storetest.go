// Package storetest provides an in-memory secretstore.Store for tests.
//
// The fake holds secrets in a map, serves them through the same pager
// contract as the real adapters, and can be told to fail listing or
// individual fetches. Mutations are safe while an engine is running
// against the fake, which is exactly what reload tests need.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/confsync/secretconf/pkg/secretstore"
)

// FakeStore is an in-memory implementation of secretstore.Store.
type FakeStore struct {
	mu       sync.Mutex
	secrets  map[string]secretstore.Secret
	versions int

	// ListErr, when set, fails every enumeration.
	listErr error

	// getErrs fails fetches of specific secrets.
	getErrs map[string]error

	// PageSize controls how many items each page carries. Defaults to 2
	// so pagination is actually exercised.
	PageSize int

	listCalls int
	getCalls  int
}

// New creates an empty fake store.
func New() *FakeStore {
	return &FakeStore{
		secrets:  make(map[string]secretstore.Secret),
		getErrs:  make(map[string]error),
		PageSize: 2,
	}
}

// Name implements secretstore.Store.
func (f *FakeStore) Name() string {
	return "fake"
}

// SetSecret adds or replaces a secret. The version is bumped
// automatically so the engine sees the change on its next reload.
func (f *FakeStore) SetSecret(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions++
	f.secrets[name] = secretstore.Secret{
		Name:    name,
		Value:   value,
		Version: fmt.Sprintf("v%d", f.versions),
		Enabled: true,
		Updated: time.Now(),
	}
}

// Put stores a secret verbatim, for tests that need control over
// version, content type, tags or the enabled flag.
func (f *FakeStore) Put(s secretstore.Secret) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[s.Name] = s
}

// Delete removes a secret.
func (f *FakeStore) Delete(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.secrets, name)
}

// FailList makes every enumeration fail with err until called with nil.
func (f *FakeStore) FailList(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// FailGet makes fetches of name fail with err until called with nil.
func (f *FakeStore) FailGet(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.getErrs, name)
		return
	}
	f.getErrs[name] = err
}

// ListCalls reports how many enumerations were started.
func (f *FakeStore) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// GetCalls reports how many fetches were performed.
func (f *FakeStore) GetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

// ListSecrets implements secretstore.Store. Items are returned in
// lexical name order so enumeration order is deterministic in tests.
func (f *FakeStore) ListSecrets(ctx context.Context) secretstore.Pager {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	if f.listErr != nil {
		return &fakePager{err: f.listErr}
	}

	names := make([]string, 0, len(f.secrets))
	for name := range f.secrets {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]secretstore.Item, 0, len(names))
	for _, name := range names {
		s := f.secrets[name]
		items = append(items, secretstore.Item{
			Name:    s.Name,
			Enabled: s.Enabled,
			Updated: s.Updated,
		})
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 2
	}
	return &fakePager{items: items, pageSize: pageSize}
}

// GetSecret implements secretstore.Store.
func (f *FakeStore) GetSecret(ctx context.Context, name string) (secretstore.Secret, error) {
	if err := ctx.Err(); err != nil {
		return secretstore.Secret{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++

	if err, ok := f.getErrs[name]; ok {
		return secretstore.Secret{}, err
	}
	s, ok := f.secrets[name]
	if !ok {
		return secretstore.Secret{}, secretstore.NotFoundError{Store: f.Name(), Name: name}
	}
	return s, nil
}

type fakePager struct {
	items    []secretstore.Item
	pageSize int
	offset   int
	err      error
	failed   bool
}

func (p *fakePager) More() bool {
	if p.err != nil {
		return !p.failed
	}
	return p.offset < len(p.items)
}

func (p *fakePager) NextPage(ctx context.Context) ([]secretstore.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.err != nil {
		p.failed = true
		return nil, p.err
	}
	end := p.offset + p.pageSize
	if end > len(p.items) {
		end = len(p.items)
	}
	page := p.items[p.offset:end]
	p.offset = end
	return page, nil
}
