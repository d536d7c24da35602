package main

import (
	"fmt"
	"os"

	"echovia/internal/config"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

func newConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(*configPath); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", *configPath)
			}
			if err := config.DefaultConfig().SaveToFile(*configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", *configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(masked(*cfg))
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func masked(cfg config.Config) config.Config {
	for _, secret := range []*string{&cfg.Auth.JWTSecret, &cfg.Ingest.APIKey, &cfg.Ngrok.AuthToken} {
		if *secret != "" {
			*secret = "********"
		}
	}
	return cfg
}
