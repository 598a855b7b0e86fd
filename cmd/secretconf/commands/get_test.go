package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/confsync/secretconf/internal/config"
	"github.com/confsync/secretconf/internal/logging"
	"github.com/confsync/secretconf/pkg/secretstore/storetest"
)

// newTestConfig writes a minimal secretconf.yaml and wires the fake
// store in as the backend.
func newTestConfig(t *testing.T, fake *storetest.FakeStore, def *config.Definition) *config.Config {
	t.Helper()

	if def == nil {
		def = &config.Definition{
			Store: config.StoreDefinition{Type: config.StoreAzureKeyVault},
		}
	}

	data, err := yaml.Marshal(def)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "secretconf.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return &config.Config{
		Path:   path,
		Logger: logging.New(false, true),
		Store:  fake,
	}
}

func TestGetCommand_BasicUsage(t *testing.T) {
	fake := storetest.New()
	fake.SetSecret("App--Db--Host", "db.internal")
	fake.SetSecret("App--Timeout", "30")

	t.Run("get single key", func(t *testing.T) {
		cmd := NewGetCommand(newTestConfig(t, fake, nil))
		output := captureOutput(t, cmd, []string{"App:Db:Host"})

		// Raw output should just be the value (no newline in fmt.Print)
		assert.Equal(t, "db.internal", output)
	})

	t.Run("get different key", func(t *testing.T) {
		cmd := NewGetCommand(newTestConfig(t, fake, nil))
		output := captureOutput(t, cmd, []string{"App:Timeout"})

		assert.Equal(t, "30", output)
	})
}

func TestGetCommand_JSONOutput(t *testing.T) {
	fake := storetest.New()
	fake.SetSecret("App--Timeout", "30")

	cmd := NewGetCommand(newTestConfig(t, fake, nil))
	output := captureOutput(t, cmd, []string{"App:Timeout", "--json"})

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &result))

	assert.Equal(t, "App:Timeout", result["key"])
	assert.Equal(t, "30", result["value"])
	assert.NotEmpty(t, result["loaded_at"])
	assert.NotEmpty(t, result["source_version"])
}

func TestGetCommand_MissingKey(t *testing.T) {
	fake := storetest.New()
	fake.SetSecret("App--Timeout", "30")

	cmd := NewGetCommand(newTestConfig(t, fake, nil))
	cmd.SetArgs([]string{"App:Missing"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Contains(t, err.Error(), "App:Timeout", "a small key set should be listed in the suggestion")
}

func TestGetCommand_RequiresKeyArgument(t *testing.T) {
	cmd := NewGetCommand(newTestConfig(t, storetest.New(), nil))
	cmd.SetArgs([]string{})

	assert.Error(t, cmd.Execute())
}

func TestGetCommand_PrefixFromConfig(t *testing.T) {
	fake := storetest.New()
	fake.SetSecret("App1--Timeout", "30")
	fake.SetSecret("App2--Timeout", "60")

	def := &config.Definition{
		Store:   config.StoreDefinition{Type: config.StoreAzureKeyVault},
		Mapping: config.MappingDefinition{Prefix: "App1"},
	}

	cmd := NewGetCommand(newTestConfig(t, fake, def))
	output := captureOutput(t, cmd, []string{"Timeout"})

	assert.Equal(t, "30", output)
}

func TestGetCommand_StoreFailure(t *testing.T) {
	fake := storetest.New()
	fake.FailList(assert.AnError)

	cmd := NewGetCommand(newTestConfig(t, fake, nil))
	cmd.SetArgs([]string{"App:Timeout"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial load")
}

func TestGetCommand_SpecialCharacterValues(t *testing.T) {
	fake := storetest.New()
	fake.SetSecret("Password", "p@ss=word!#$%^&*()")
	fake.SetSecret("Multiline", "line1\nline2\nline3")

	t.Run("special characters", func(t *testing.T) {
		cmd := NewGetCommand(newTestConfig(t, fake, nil))
		output := captureOutput(t, cmd, []string{"Password"})
		assert.Equal(t, "p@ss=word!#$%^&*()", output)
	})

	t.Run("multiline value", func(t *testing.T) {
		cmd := NewGetCommand(newTestConfig(t, fake, nil))
		output := captureOutput(t, cmd, []string{"Multiline"})
		assert.Equal(t, "line1\nline2\nline3", output)
	})
}

// captureOutput captures stdout produced by executing cmd
func captureOutput(t *testing.T, cmd *cobra.Command, args []string) string {
	t.Helper()

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	if args != nil {
		cmd.SetArgs(args)
	}

	err := cmd.Execute()
	if err != nil {
		_ = w.Close()
		os.Stdout = old
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		t.Logf("Command output before error: %s", buf.String())
		require.NoError(t, err)
	}

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)

	return buf.String()
}
