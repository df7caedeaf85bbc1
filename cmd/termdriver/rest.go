package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/acolita/termdriver/internal/rest"
)

var restOpts struct {
	templateDir string
	baseURL     string
	params      string
	bunch       string
}

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Run REST call templates",
}

var restExecuteCmd = &cobra.Command{
	Use:   "execute [TEMPLATE]",
	Short: "Render and execute a REST template, or a bunch of them",
	Example: `  termdriver rest execute users/create.yaml --params '{name: alice}'
  termdriver rest execute --bunch provision.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := restOpts.templateDir
		if dir == "" {
			dir = cfg.REST.TemplateDir
		}
		if dir == "" {
			dir = "."
		}
		base := restOpts.baseURL
		if base == "" {
			base = cfg.REST.BaseURL
		}

		params := map[string]any{}
		if restOpts.params != "" {
			if err := yaml.Unmarshal([]byte(restOpts.params), &params); err != nil {
				return err
			}
		}

		fsys := os.DirFS(dir)
		exec := rest.NewExecutor(base, rest.WithTimeout(cfg.REST.Timeout))

		var (
			result map[string]any
			err    error
		)
		switch {
		case restOpts.bunch != "":
			var items []rest.BunchItem
			data, rerr := os.ReadFile(restOpts.bunch)
			if rerr != nil {
				return rerr
			}
			if err := yaml.Unmarshal(data, &items); err != nil {
				return err
			}
			result, err = exec.Bunch(cmd.Context(), fsys, items, params)
		case len(args) == 1:
			result, err = exec.ExecuteFile(cmd.Context(), fsys, args[0], nil, params)
		default:
			return cmd.Usage()
		}
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	f := restExecuteCmd.Flags()
	f.StringVar(&restOpts.templateDir, "template-dir", "", "directory templates are resolved in (default rest.template_dir)")
	f.StringVar(&restOpts.baseURL, "base-url", "", "base URL prefixed to relative paths (default rest.base_url)")
	f.StringVar(&restOpts.params, "params", "", "template parameters as YAML or JSON")
	f.StringVar(&restOpts.bunch, "bunch", "", "YAML file listing templates to run in order")
	restCmd.AddCommand(restExecuteCmd)
	rootCmd.AddCommand(restCmd)
}
