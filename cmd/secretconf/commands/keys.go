package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/confsync/secretconf/internal/config"
)

func NewKeysCommand(cfg *config.Config) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "keys [prefix]",
		Short: "List configuration keys",
		Long: `Fetch the store once and list the configuration keys it exposes.

With a prefix argument only keys under that hierarchy level are listed;
the prefix matches whole segments, so "App" matches "App:Timeout" but
not "Apple".

Examples:
  # List every key
  secretconf keys

  # List the keys of one subtree
  secretconf keys App:Db

  # Machine readable
  secretconf keys --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}

			ctx := context.Background()
			provider, err := buildProvider(ctx, cfg)
			if err != nil {
				return err
			}
			defer provider.Shutdown()

			keys := provider.Keys(prefix)

			if jsonOutput {
				if keys == nil {
					keys = []string{}
				}
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(keys)
			}

			for _, key := range keys {
				fmt.Println(key)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as a JSON array")

	return cmd
}
