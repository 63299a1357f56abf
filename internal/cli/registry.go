package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/velonis/blueprint/internal/clickup"
	"github.com/velonis/blueprint/internal/domain/template"
	"github.com/velonis/blueprint/internal/registry"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Store and fetch templates in the workspace registry list",
}

var registryPushCmd = &cobra.Command{
	Use:   "push <template-file>",
	Short: "Upload a template to the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		tpl, err := template.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
		if err := reg.Store(cmd.Context(), tpl, raw); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pushed %s version %s\n", tpl.Meta.Slug, tpl.Meta.Version)
		return nil
	},
}

var registryPullCmd = &cobra.Command{
	Use:   "pull <slug>",
	Short: "Fetch a template from the registry and print it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		_, raw, err := reg.Fetch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(raw)
		return err
	},
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the templates in the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		entries, err := reg.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, e := range entries {
			line := fmt.Sprintf("%s\t%s\tdeployed %d times", e.Slug, e.Version, e.DeployCount)
			if e.LastDeployed > 0 {
				line += ", last " + time.UnixMilli(e.LastDeployed).Format("2006-01-02")
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

func openRegistry() (*registry.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RegistryListID == "" {
		return nil, errors.New("missing registry list id (BLUEPRINT_REGISTRY_LIST_ID)")
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return registry.New(clickup.New(cfg.Token), cfg.RegistryListID, log), nil
}

func init() {
	registryCmd.AddCommand(registryPushCmd)
	registryCmd.AddCommand(registryPullCmd)
	registryCmd.AddCommand(registryListCmd)
	RootCmd.AddCommand(registryCmd)
}
