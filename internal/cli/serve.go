package cli

import (
	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
)

func newServeCommand(g *globals) *cobra.Command {
	var addr, staticDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the recognition server",
		Long: `Loads the vocabulary, the classifier and the hand landmark service,
then accepts WebSocket streams until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.config
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if staticDir != "" {
				cfg.Server.StaticDir = staticDir
			}

			models, err := app.LoadModels(cfg, g.logger)
			if err != nil {
				return err
			}

			a, err := app.New(cfg, models, g.logger)
			if err != nil {
				models.Close()
				return err
			}
			return a.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&staticDir, "static", "", "directory of static files to serve")
	return cmd
}
