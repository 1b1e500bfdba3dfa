package cli

import (
	"github.com/spf13/cobra"

	"github.com/risuops/risuctl/internal/logging"
	"github.com/risuops/risuctl/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the adapter over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		cfg, adapter, store, cleanup, err := openDeps()
		if err != nil {
			return err
		}
		defer cleanup()

		if addr == "" {
			addr = cfg.Serve.Addr
		}

		log, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}

		srv, handler := web.NewServer(adapter, store, log, addr, cfg.Serve.AllowedOrigins)
		return srv.ListenAndServe(handler)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config, :8099)")
}
