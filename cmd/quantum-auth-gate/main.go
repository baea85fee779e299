package main

import (
	"fmt"

	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/spf13/cobra"

	"github.com/quantumauth-io/quantum-auth-gate/cmd/quantum-auth-gate/config"
	"github.com/quantumauth-io/quantum-auth-gate/internal/constants"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal("quantum-auth-gate failed", "error", err)
	}
}

type loadFunc func() (*config.Config, error)

func newRootCmd() *cobra.Command {
	var configDir string

	root := &cobra.Command{
		Use:           constants.AppName,
		Short:         "Origin authorization gate between dapp pages and the wallet",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", "",
		"directory holding config.yaml (default: ~/.config/"+constants.AppName+", ~/config, .)")

	load := func() (*config.Config, error) {
		if configDir != "" {
			return config.Load(configDir)
		}
		return config.Load()
	}

	root.AddCommand(
		newServeCmd(load),
		newGrantsCmd(load),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit %s, built %s)\n", constants.AppName, Version, Commit, BuildDate)
		},
	}
}
