package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tagsrv/internal/config"
	"github.com/DoyleJ11/tagsrv/internal/gamemode"
	"github.com/DoyleJ11/tagsrv/internal/logging"
	"github.com/DoyleJ11/tagsrv/internal/replica"
	"github.com/DoyleJ11/tagsrv/internal/teamtag"
)

func newWatchCmd(v *viper.Viper, configFile *string) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Join a room as a replica and print the team table on every snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, *configFile)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			c, err := replica.Dial(cmd.Context(), url, log)
			if err != nil {
				return err
			}
			defer c.Close()
			log.Info("joined", zap.Int32("actor", int32(c.Actor())), zap.String("mode", c.Mode()))

			errc := make(chan error, 1)
			go func() { errc <- c.Run(cmd.Context()) }()
			for table := range c.Updates() {
				printTable(cmd.OutOrStdout(), table)
			}
			return <-errc
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "websocket url, e.g. ws://localhost:8080/ws?code=ABC123")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func printTable(w io.Writer, table map[gamemode.ActorID]teamtag.Team) {
	actors := make([]gamemode.ActorID, 0, len(table))
	for a := range table {
		actors = append(actors, a)
	}
	slices.Sort(actors)
	parts := make([]string, 0, len(actors))
	for _, a := range actors {
		parts = append(parts, fmt.Sprintf("%d=%s", a, table[a]))
	}
	fmt.Fprintln(w, strings.Join(parts, " "))
}
