package secretconf

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/confsync/secretconf/pkg/secretstore"
)

// Snapshot is an immutable point-in-time view of the mapped
// configuration. Once built it is never mutated, only replaced
// wholesale, so it is safe for unsynchronized concurrent reads.
type Snapshot struct {
	values        map[string]string
	keys          []string // sorted
	loadedAt      time.Time
	sourceVersion string
}

// Value returns the value for a configuration key.
func (s *Snapshot) Value(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the configuration keys under prefix, sorted. An empty
// prefix returns every key. A non-empty prefix matches only at hierarchy
// boundaries: prefix "App" matches "App:Timeout" but not "Apple".
func (s *Snapshot) Keys(prefix string) []string {
	if prefix == "" {
		out := make([]string, len(s.keys))
		copy(out, s.keys)
		return out
	}
	prefix = strings.TrimSuffix(prefix, KeyDelimiter) + KeyDelimiter
	var out []string
	for _, k := range s.keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

// Len returns the number of configuration entries.
func (s *Snapshot) Len() int {
	return len(s.values)
}

// LoadedAt returns when this snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// SourceVersion is a stable digest over the (name, version) pairs of the
// secrets this snapshot was built from. Two snapshots built from the
// same secret set have equal SourceVersions, which is how the engine
// detects no-op reloads.
func (s *Snapshot) SourceVersion() string {
	return s.sourceVersion
}

// Collision records two secrets mapping to the same configuration key.
// Per policy the one enumerated later wins; collisions are diagnostics,
// never load failures.
type Collision struct {
	// Key is the configuration key both secrets mapped to.
	Key string

	// Kept is the name of the secret whose value the snapshot holds.
	Kept string

	// Dropped is the name of the secret that was shadowed.
	Dropped string
}

// emptySnapshot returns a valid zero-entry snapshot, used when
// TolerateInitialFailure downgrades a failed initial load.
func emptySnapshot(now time.Time) *Snapshot {
	return &Snapshot{
		values:        map[string]string{},
		loadedAt:      now,
		sourceVersion: digestSecrets(nil),
	}
}

// buildSnapshot assembles a snapshot from fetched secrets in enumeration
// order. Secrets the mapper declines are dropped; a later secret mapping
// to an occupied key overwrites it and the collision is reported.
func buildSnapshot(secrets []secretstore.Secret, mapper Mapper, now time.Time) (*Snapshot, []Collision) {
	values := make(map[string]string, len(secrets))
	keyOwner := make(map[string]string, len(secrets))
	var collisions []Collision
	var loaded []secretstore.Secret

	for _, secret := range secrets {
		key, load := mapper.Map(secret)
		if !load {
			continue
		}
		if prev, taken := keyOwner[key]; taken {
			collisions = append(collisions, Collision{
				Key:     key,
				Kept:    secret.Name,
				Dropped: prev,
			})
		}
		values[key] = secret.Value
		keyOwner[key] = secret.Name
		loaded = append(loaded, secret)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &Snapshot{
		values:        values,
		keys:          keys,
		loadedAt:      now,
		sourceVersion: digestSecrets(loaded),
	}, collisions
}

// digestSecrets computes the sourceVersion: a sha256 over the sorted
// (name, version) pairs. Values deliberately stay out of the digest; a
// backend bumps the version whenever the value changes.
func digestSecrets(secrets []secretstore.Secret) string {
	pairs := make([]string, 0, len(secrets))
	for _, s := range secrets {
		pairs = append(pairs, s.Name+"\x00"+s.Version)
	}
	sort.Strings(pairs)

	h := sha256.New()
	for _, p := range pairs {
		h.Write([]byte(p))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
