package main

import (
	"fmt"
	"os"

	"github.com/impresso/impresso-essentials-go/internal/config"
	"github.com/impresso/impresso-essentials-go/internal/tui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Edit the application configuration interactively",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func init() {
	configCmd.Flags().Bool("accessible", false, "Use prompts suited to screen readers")
}

// configPath returns the file the editor writes to
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.ConfigFilePath()
}

func runConfig(cmd *cobra.Command, args []string) error {
	accessible, _ := cmd.Flags().GetBool("accessible")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Ignoring unreadable configuration: %v\n", err)
		cfg = config.Default()
	}

	path := configPath()
	return runEditor(tui.Options{
		Config:     cfg,
		Path:       path,
		Env:        config.EnvOverrides(os.LookupEnv),
		Accessible: accessible,
		SaveFunc: func(c *config.Config) error {
			return config.Save(c, path)
		},
	})
}
