package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	sharedconfig "acr/internal/shared/config"
)

func newConfigDumpCommand() *cobra.Command {
	var writeTo string

	cmd := &cobra.Command{
		Use:   "config-dump",
		Short: "Print the effective runtime config (defaults + file + environment)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRuntimeConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if writeTo != "" {
				if err := sharedconfig.Save(cfg, writeTo); err != nil {
					return fmt.Errorf("write config: %w", err)
				}
				fmt.Println(actionLine("wrote " + writeTo))
				return nil
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&writeTo, "write", "", "write the effective config to this path instead of printing it")
	return cmd
}
