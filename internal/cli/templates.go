package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the templates in the configured library",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		lib, err := openLibrary(cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		slugs := lib.Slugs()
		if len(slugs) == 0 {
			fmt.Fprintf(out, "no templates in %s\n", cfg.TemplatesDir)
			return nil
		}
		for _, slug := range slugs {
			tpl, ok := lib.Get(slug)
			if !ok {
				continue
			}
			fmt.Fprintf(out, "%s\t%s\t%d phases\n", slug, tpl.Meta.Name, len(tpl.Phases))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(templatesCmd)
}
