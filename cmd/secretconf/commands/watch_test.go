package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/confsync/secretconf/pkg/secretconf"
	"github.com/confsync/secretconf/pkg/secretstore/storetest"
)

// snapshotOf is a shortcut for building a snapshot through a provider
// over a fake store.
func snapshotOf(t *testing.T, secrets map[string]string) *secretconf.Snapshot {
	t.Helper()

	fake := storetest.New()
	for name, value := range secrets {
		fake.SetSecret(name, value)
	}

	p, err := secretconf.New(fake, secretconf.WithReloadInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Initialize(t.Context()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(p.Shutdown)
	return p.Snapshot()
}

func TestDiffSnapshots(t *testing.T) {
	prev := snapshotOf(t, map[string]string{
		"App--Timeout": "30",
		"App--Old":     "x",
		"LogLevel":     "info",
	})
	next := snapshotOf(t, map[string]string{
		"App--Timeout": "60",   // changed
		"LogLevel":     "info", // untouched
		"App--New":     "y",    // added
	})

	assert.Equal(t, []string{
		"- App:Old",
		"+ App:New",
		"~ App:Timeout",
	}, diffSnapshots(prev, next))
}

func TestDiffSnapshotsNoChanges(t *testing.T) {
	prev := snapshotOf(t, map[string]string{"a": "1"})
	next := snapshotOf(t, map[string]string{"a": "1"})

	assert.Empty(t, diffSnapshots(prev, next))
}

func TestDiffSnapshotsNeverPrintsValues(t *testing.T) {
	prev := snapshotOf(t, map[string]string{"Password": "hunter2"})
	next := snapshotOf(t, map[string]string{"Password": "hunter3"})

	for _, line := range diffSnapshots(prev, next) {
		assert.NotContains(t, line, "hunter")
	}
}
