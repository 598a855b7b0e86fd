package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	dserrors "github.com/confsync/secretconf/internal/errors"
	"github.com/confsync/secretconf/internal/logging"
	"github.com/confsync/secretconf/pkg/secretconf"
	"github.com/confsync/secretconf/pkg/secretstore"
	"github.com/confsync/secretconf/pkg/secretstore/awssm"
	"github.com/confsync/secretconf/pkg/secretstore/azurekv"
	"github.com/confsync/secretconf/pkg/secretstore/gcpsm"
)

// Store type identifiers accepted in the 'store.type' field.
const (
	StoreAzureKeyVault     = "azure-keyvault"
	StoreAWSSecretsManager = "aws-secretsmanager"
	StoreGCPSecretManager  = "gcp-secretmanager"
)

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition

	// Store, when set, overrides the store built from the definition.
	// Tests use it to run commands against a fake.
	Store secretstore.Store
}

// Definition represents the secretconf.yaml structure
type Definition struct {
	Store   StoreDefinition   `yaml:"store"`
	Reload  ReloadDefinition  `yaml:"reload,omitempty"`
	Mapping MappingDefinition `yaml:"mapping,omitempty"`
}

// StoreDefinition selects and configures the secret store backend
type StoreDefinition struct {
	Type  string         `yaml:"type"`
	Azure AzureKVConfig  `yaml:"azure,omitempty"`
	AWS   AWSSMConfig    `yaml:"aws,omitempty"`
	GCP   GCPSMConfig    `yaml:"gcp,omitempty"`
}

// AzureKVConfig holds Azure Key Vault settings
type AzureKVConfig struct {
	VaultURL           string `yaml:"vault_url"`
	TenantID           string `yaml:"tenant_id,omitempty"`
	ClientID           string `yaml:"client_id,omitempty"`
	ClientSecret       string `yaml:"client_secret,omitempty"`
	UseManagedIdentity bool   `yaml:"use_managed_identity,omitempty"`
	UserAssignedID     string `yaml:"user_assigned_id,omitempty"`
}

// AWSSMConfig holds AWS Secrets Manager settings
type AWSSMConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

// GCPSMConfig holds Google Secret Manager settings
type GCPSMConfig struct {
	ProjectID             string `yaml:"project_id"`
	ServiceAccountKeyPath string `yaml:"service_account_key_path,omitempty"`
}

// ReloadDefinition tunes the background reload engine
type ReloadDefinition struct {
	IntervalSeconds        int  `yaml:"interval_seconds,omitempty"`
	TimeoutMs              int  `yaml:"timeout_ms,omitempty"`
	FetchConcurrency       int  `yaml:"fetch_concurrency,omitempty"`
	TolerateInitialFailure bool `yaml:"tolerate_initial_failure,omitempty"`
}

// MappingDefinition tunes how secret names become configuration keys
type MappingDefinition struct {
	// Prefix, when set, loads only secrets named "<Prefix>--..." and
	// strips the leader from the resulting keys.
	Prefix string `yaml:"prefix,omitempty"`
}

// Load reads and parses the secretconf.yaml file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create a secretconf.yaml with a 'store:' section, or point --config at one",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if err := def.validate(); err != nil {
		return err
	}

	c.Definition = &def
	return nil
}

func (d *Definition) validate() error {
	switch d.Store.Type {
	case StoreAzureKeyVault, StoreAWSSecretsManager, StoreGCPSecretManager:
	case "":
		return dserrors.ConfigError{
			Field:      "store.type",
			Message:    "a store type is required",
			Suggestion: fmt.Sprintf("Set store.type to one of: %s, %s, %s", StoreAzureKeyVault, StoreAWSSecretsManager, StoreGCPSecretManager),
		}
	default:
		return dserrors.ConfigError{
			Field:      "store.type",
			Value:      d.Store.Type,
			Message:    "unknown store type",
			Suggestion: fmt.Sprintf("Supported types: %s, %s, %s", StoreAzureKeyVault, StoreAWSSecretsManager, StoreGCPSecretManager),
		}
	}

	if d.Reload.IntervalSeconds < 0 {
		return dserrors.ConfigError{
			Field:      "reload.interval_seconds",
			Value:      d.Reload.IntervalSeconds,
			Message:    "reload interval must not be negative",
			Suggestion: "Use a value in the tens of seconds to minutes range, or omit it for the default",
		}
	}
	if d.Reload.FetchConcurrency < 0 {
		return dserrors.ConfigError{
			Field:      "reload.fetch_concurrency",
			Value:      d.Reload.FetchConcurrency,
			Message:    "fetch concurrency must not be negative",
		}
	}

	return nil
}

// BuildStore constructs the secret store client the definition selects.
// When Config.Store is set it wins, so commands stay testable without
// cloud credentials.
func (c *Config) BuildStore(ctx context.Context) (secretstore.Store, error) {
	if c.Store != nil {
		return c.Store, nil
	}
	if c.Definition == nil {
		return nil, dserrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}

	switch c.Definition.Store.Type {
	case StoreAzureKeyVault:
		a := c.Definition.Store.Azure
		return azurekv.New(azurekv.Config{
			VaultURL:           a.VaultURL,
			TenantID:           a.TenantID,
			ClientID:           a.ClientID,
			ClientSecret:       a.ClientSecret,
			UseManagedIdentity: a.UseManagedIdentity,
			UserAssignedID:     a.UserAssignedID,
		})

	case StoreAWSSecretsManager:
		a := c.Definition.Store.AWS
		return awssm.New(ctx, awssm.Config{
			Region:          a.Region,
			AccessKeyID:     a.AccessKeyID,
			SecretAccessKey: a.SecretAccessKey,
		})

	case StoreGCPSecretManager:
		g := c.Definition.Store.GCP
		return gcpsm.New(ctx, gcpsm.Config{
			ProjectID:             g.ProjectID,
			ServiceAccountKeyPath: g.ServiceAccountKeyPath,
		})
	}

	return nil, dserrors.ConfigError{
		Field:   "store.type",
		Value:   c.Definition.Store.Type,
		Message: "unknown store type",
	}
}

// ProviderOptions translates the reload and mapping sections into engine
// options.
func (c *Config) ProviderOptions() []secretconf.Option {
	var opts []secretconf.Option
	if c.Definition == nil {
		return opts
	}

	r := c.Definition.Reload
	if r.IntervalSeconds > 0 {
		opts = append(opts, secretconf.WithReloadInterval(time.Duration(r.IntervalSeconds)*time.Second))
	}
	if r.TimeoutMs > 0 {
		opts = append(opts, secretconf.WithReloadTimeout(time.Duration(r.TimeoutMs)*time.Millisecond))
	}
	if r.FetchConcurrency > 0 {
		opts = append(opts, secretconf.WithFetchConcurrency(r.FetchConcurrency))
	}
	if r.TolerateInitialFailure {
		opts = append(opts, secretconf.WithTolerateInitialFailure())
	}

	if p := c.Definition.Mapping.Prefix; p != "" {
		opts = append(opts, secretconf.WithMapper(secretconf.PrefixMapper{Prefix: p}))
	}

	return opts
}
