package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the acr build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(colorBold("acr " + version))
			return nil
		},
	}
}
