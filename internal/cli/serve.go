package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/velonis/blueprint/internal/clickup"
	"github.com/velonis/blueprint/internal/deploy"
	"github.com/velonis/blueprint/internal/flow"
	"github.com/velonis/blueprint/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP deployment server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		client := clickup.New(cfg.Token)
		orch := deploy.NewOrchestrator(client, cfg.TeamID)
		lib, err := openLibrary(cfg)
		if err != nil {
			return err
		}
		// Reload templates as files change for as long as the server runs.
		go func() {
			if err := lib.Watch(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "template watch stopped: %v\n", err)
			}
		}()

		flowEngine := flow.New(lib, client, orch, newInterpreter(cfg), cfg.TeamID, cfg.DeployOptions())
		srv := server.New(lib, orch, flowEngine, cfg.APIKey, cfg.EmailDomains, cfg.DeployOptions(), Version)

		addr := cfg.ServerAddr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", addr)
		httpServer := &http.Server{Addr: addr, Handler: srv.Router()}
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	RootCmd.AddCommand(serveCmd)
}
