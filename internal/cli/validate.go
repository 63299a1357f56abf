package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/velonis/blueprint/internal/domain/template"
)

var validateCmd = &cobra.Command{
	Use:   "validate <template-file>",
	Short: "Parse and validate a template file without deploying it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		tpl, err := template.Parse(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		result := tpl.Validate()
		for _, w := range result.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		for _, e := range result.Errors {
			fmt.Fprintf(out, "error: %s\n", e)
		}
		if !result.Valid {
			return fmt.Errorf("%s is invalid", args[0])
		}
		fmt.Fprintf(out, "%s: ok (%d phases)\n", tpl.Meta.Slug, len(tpl.Phases))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(validateCmd)
}
