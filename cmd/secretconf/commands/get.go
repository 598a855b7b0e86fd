package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/confsync/secretconf/internal/config"
)

func NewGetCommand(cfg *config.Config) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a single configuration value",
		Long: `Fetch the store once and print the value for one configuration key.

Keys use the ":" hierarchy delimiter, so the secret "App--Timeout" is
addressed as "App:Timeout". By default only the raw value is printed,
making it suitable for scripting.

Examples:
  # Get a single value
  secretconf get App:Timeout

  # Get value with metadata in JSON format
  secretconf get App:Db:Host --json

  # Use in scripts
  export DB_HOST=$(secretconf get App:Db:Host)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			ctx := context.Background()
			provider, err := buildProvider(ctx, cfg)
			if err != nil {
				return err
			}
			defer provider.Shutdown()

			value, ok := provider.Value(key)
			if !ok {
				return keyNotFound(provider, key)
			}

			if jsonOutput {
				snap := provider.Snapshot()
				output := map[string]interface{}{
					"key":            key,
					"value":          value,
					"loaded_at":      snap.LoadedAt(),
					"source_version": snap.SourceVersion(),
				}

				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(output); err != nil {
					return fmt.Errorf("failed to encode JSON: %w", err)
				}
			} else {
				// Raw value output (default)
				fmt.Print(value)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format with metadata")

	return cmd
}
