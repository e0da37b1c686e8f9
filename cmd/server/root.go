package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/DoyleJ11/tagsrv/internal/config"
)

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	root := &cobra.Command{
		Use:           "tagsrv",
		Short:         "Authoritative server for the team tag and golden monkey modes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotenv()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-format", "", "json or console")
	_ = v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = v.BindPFlag("log_format", pf.Lookup("log-format"))

	root.AddCommand(newServeCmd(v, &configFile), newWatchCmd(v, &configFile))
	return root
}

// flagKey maps a flag name to its config key.
func flagKey(name string) string { return strings.ReplaceAll(name, "-", "_") }
