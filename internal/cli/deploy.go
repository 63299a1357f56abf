package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/velonis/blueprint/internal/config"
	domaindeploy "github.com/velonis/blueprint/internal/domain/deploy"
	"github.com/velonis/blueprint/internal/domain/template"
	"github.com/velonis/blueprint/internal/registry"
)

var (
	deployStopOnMissing bool
	deployNewList       bool
	deployRollback      bool
	deployDelayMs       int
	deployJSON          bool
	deployFromRegistry  bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy <template-file-or-slug>",
	Short: "Deploy a template into the workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		orch, err := newOrchestrator(cfg)
		if err != nil {
			return err
		}

		var tpl *template.Template
		var reg *registry.Registry
		if deployFromRegistry {
			reg, err = openRegistry()
			if err != nil {
				return err
			}
			tpl, _, err = reg.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
		} else {
			tpl, err = resolveTemplate(cfg, args[0])
			if err != nil {
				return err
			}
		}

		opts := cfg.DeployOptions()
		if cmd.Flags().Changed("stop-on-missing-fields") {
			opts.StopOnMissingFields = deployStopOnMissing
		}
		if cmd.Flags().Changed("create-new-list") {
			opts.CreateNewListIfNeeded = deployNewList
		}
		if cmd.Flags().Changed("rollback") {
			opts.EnableRollback = deployRollback
		}
		if cmd.Flags().Changed("delay-ms") {
			opts.DelayBetweenCalls = time.Duration(deployDelayMs) * time.Millisecond
		}

		result := orch.Deploy(cmd.Context(), tpl, opts)

		if deployJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
		} else {
			printResult(cmd, result)
		}
		if !result.Success {
			return fmt.Errorf("deployment %s failed", result.RunID)
		}
		if reg != nil {
			if err := reg.RecordDeployment(cmd.Context(), tpl.Meta.Slug); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "record deployment: %v\n", err)
			}
		}
		return nil
	},
}

func init() {
	deployCmd.Flags().BoolVar(&deployStopOnMissing, "stop-on-missing-fields", false, "abort before deploying when referenced custom fields are missing")
	deployCmd.Flags().BoolVar(&deployNewList, "create-new-list", true, "create the destination list when it does not exist")
	deployCmd.Flags().BoolVar(&deployRollback, "rollback", false, "delete created tasks when an item fails")
	deployCmd.Flags().IntVar(&deployDelayMs, "delay-ms", 0, "base delay between workspace calls in milliseconds")
	deployCmd.Flags().BoolVar(&deployJSON, "json", false, "print the full result as JSON")
	deployCmd.Flags().BoolVar(&deployFromRegistry, "from-registry", false, "fetch the template from the workspace registry by slug")
	RootCmd.AddCommand(deployCmd)
}

// resolveTemplate treats the argument as a file path first, then as a slug
// in the configured templates directory.
func resolveTemplate(cfg *config.Config, arg string) (*template.Template, error) {
	if data, err := os.ReadFile(arg); err == nil {
		return template.Parse(data)
	}
	lib, err := openLibrary(cfg)
	if err != nil {
		return nil, err
	}
	tpl, ok := lib.Get(arg)
	if !ok {
		return nil, fmt.Errorf("no template file or library slug %q (library has %v)", arg, lib.Slugs())
	}
	return tpl, nil
}

func printResult(cmd *cobra.Command, result *domaindeploy.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %s\n", result.RunID, result.Message)
	fmt.Fprintf(out, "  phases: %d, actions: %d, checklists: %d\n",
		len(result.Phases), len(result.Actions), len(result.Checklists))
	for _, warn := range result.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", warn)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  error: %s\n", e)
	}
	if result.RolledBack > 0 {
		fmt.Fprintf(out, "  rolled back %d created tasks\n", result.RolledBack)
	}
}
