package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-emotion/config"
	"github.com/RyanBlaney/sonido-emotion/logging"
	"github.com/RyanBlaney/sonido-emotion/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(bind) != "" {
				cfg.Server.Bind = strings.TrimSpace(bind)
			}

			p, err := ctx.openPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.close()

			srv, err := server.New(serverConfig(cfg.Server), p.classifier)
			if err != nil {
				return err
			}

			logging.Info("Starting sonido-emotion", logging.Fields{
				"config":  ctx.configPath,
				"bind":    cfg.Server.Bind,
				"model":   cfg.Model.Path,
				"backend": string(cfg.Model.Backend),
			})
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address, overrides server.bind")
	return cmd
}

func serverConfig(s config.Server) server.Config {
	return server.Config{
		Bind:            s.Bind,
		MaxUploadBytes:  s.MaxUploadBytes,
		ReadTimeout:     s.ReadTimeout(),
		WriteTimeout:    s.WriteTimeout(),
		ShutdownTimeout: s.ShutdownTimeout(),
	}
}
