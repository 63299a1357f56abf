// Package cli wires the blueprint command tree.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/velonis/blueprint/internal/clickup"
	"github.com/velonis/blueprint/internal/config"
	"github.com/velonis/blueprint/internal/deploy"
	"github.com/velonis/blueprint/internal/library"
	"github.com/velonis/blueprint/internal/nlu"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var cfgPath string

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:     "blueprint",
	Version: Version,
	Short:   "Deploy project templates into a ClickUp workspace",
	Long: `Blueprint deploys JSON or YAML project templates into a ClickUp
workspace: phases become tasks, actions become subtasks, and checklists,
custom fields and assignees are applied along the way.`,
}

// Execute runs the command tree. Called once from main.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a blueprint.yaml config file")
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgPath)
}

func newOrchestrator(cfg *config.Config) (*deploy.Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return deploy.NewOrchestrator(clickup.New(cfg.Token), cfg.TeamID), nil
}

func openLibrary(cfg *config.Config) (*library.Library, error) {
	return library.Open(cfg.TemplatesDir, slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func newInterpreter(cfg *config.Config) nlu.Interpreter {
	if cfg.OpenAIKey != "" {
		return nlu.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel)
	}
	return nlu.RuleInterpreter{}
}
