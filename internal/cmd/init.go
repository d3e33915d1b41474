package cmd

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

//go:embed templates/warden.config.yaml
var starterConfig []byte

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter warden.config.yaml",
	Long:  "Writes a starter security document to the configured path. Edit the allow_list before enabling automation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := operatorConfig().ConfigPath

		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := os.WriteFile(path, starterConfig, 0o600); err != nil {
			return fmt.Errorf("writing starter config: %w", err)
		}

		log.Info().Str("path", path).Msg("config_created")
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s — add trusted usernames to security.allow_list.\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
