package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lodestar-data/lodestar/pkg/config"
	"github.com/lodestar-data/lodestar/pkg/graph"
)

var checkCmd = &cobra.Command{
	Use:   "check <recipe>",
	Short: "Validate a recipe and test catalog connectivity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		recipe, err := config.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ recipe %s is valid\n", args[0])

		if recipe.Graph.Server == "" {
			fmt.Println("  no graph server configured, skipping connectivity check")
			return nil
		}

		client, err := graph.NewClient(graph.Config{
			Server:  recipe.Graph.Server,
			Token:   recipe.Graph.Token,
			Timeout: recipe.Graph.Timeout,
		}, logger)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		serverConfig, err := client.ServerConfig(ctx)
		if err != nil {
			return fmt.Errorf("catalog connectivity check failed: %w", err)
		}
		fmt.Printf("✓ catalog reachable at %s\n", recipe.Graph.Server)

		if recipe.Stateful.Enabled {
			if capable, _ := serverConfig["statefulIngestionCapable"].(bool); !capable {
				return fmt.Errorf("recipe enables stateful ingestion but the catalog does not support it")
			}
			fmt.Println("✓ catalog supports stateful ingestion")
		}
		return nil
	},
}
