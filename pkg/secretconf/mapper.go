package secretconf

import (
	"strings"

	"github.com/confsync/secretconf/pkg/secretstore"
)

// KeyDelimiter separates levels of the configuration key hierarchy.
const KeyDelimiter = ":"

// secretDelimiter is the sequence secret stores allow in names where the
// configuration hierarchy wants KeyDelimiter. Most backends forbid ":"
// in secret names, so "App--Timeout" stands in for "App:Timeout".
const secretDelimiter = "--"

// Mapper decides, for each fetched secret, the configuration key it maps
// to and whether it should be loaded at all. Implementations must be
// pure: same secret in, same answer out, no side effects.
//
// A Mapper may additionally implement NameFilter to reject secrets by
// name before their values are fetched.
type Mapper interface {
	// Map returns the configuration key for the secret and whether to
	// include it in the snapshot. Returning load=false drops the secret
	// silently; it is not an error.
	Map(secret secretstore.Secret) (key string, load bool)
}

// NameFilter is an optional interface a Mapper can implement to skip
// secrets during enumeration, saving the fetch round-trip for secrets
// that would be dropped anyway.
type NameFilter interface {
	// LoadName reports whether a secret with this name is worth
	// fetching. A true answer is provisional: Map still has the final
	// say once the value and metadata are available.
	LoadName(name string) bool
}

// MapperFunc adapts a function to the Mapper interface.
type MapperFunc func(secret secretstore.Secret) (string, bool)

// Map implements Mapper.
func (f MapperFunc) Map(secret secretstore.Secret) (string, bool) {
	return f(secret)
}

// excludedContentTypes lists content types whose secrets back Key Vault
// managed certificates. Loading them would splash private key material
// into configuration, so the default mapper skips them.
var excludedContentTypes = map[string]bool{
	"application/x-pkcs12":   true,
	"application/x-pem-file": true,
}

// DefaultMapper is the default mapping policy: replace every "--" in the
// secret name with the ":" hierarchy delimiter and load everything
// except certificate-backing content types.
//
// "App--Feature--Enabled" maps to "App:Feature:Enabled".
type DefaultMapper struct{}

// Map implements Mapper.
func (DefaultMapper) Map(secret secretstore.Secret) (string, bool) {
	if excludedContentTypes[secret.ContentType] {
		return "", false
	}
	return strings.ReplaceAll(secret.Name, secretDelimiter, KeyDelimiter), true
}

// PrefixMapper loads only secrets whose names start with Prefix followed
// by "--", strips that leader, and maps the remainder like DefaultMapper.
// It lets several applications share one vault: with Prefix "App1",
// "App1--Db--Host" becomes "Db:Host" and "App2--Db--Host" is never
// fetched.
type PrefixMapper struct {
	// Prefix is the name leader to require and strip, without the
	// trailing "--".
	Prefix string
}

// Map implements Mapper.
func (m PrefixMapper) Map(secret secretstore.Secret) (string, bool) {
	if !m.LoadName(secret.Name) {
		return "", false
	}
	if excludedContentTypes[secret.ContentType] {
		return "", false
	}
	trimmed := strings.TrimPrefix(secret.Name, m.Prefix+secretDelimiter)
	return strings.ReplaceAll(trimmed, secretDelimiter, KeyDelimiter), true
}

// LoadName implements NameFilter so non-matching secrets are skipped
// before their values are fetched.
func (m PrefixMapper) LoadName(name string) bool {
	return strings.HasPrefix(name, m.Prefix+secretDelimiter)
}
