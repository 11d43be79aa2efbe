// File: cmd/script.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/casperjs-driver/internal/casper"
	"github.com/xkilldash9x/casperjs-driver/internal/observability"
)

func newScriptCmd() *cobra.Command {
	var ff fetchFlags
	var final bool

	scriptCmd := &cobra.Command{
		Use:   "script [url]",
		Short: "Print the CasperJS script that fetch would run for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			recipe, err := buildRecipe(cfg, ff)
			if err != nil {
				return err
			}
			d, err := casper.New(cfg.Engine().Command, casper.WithLogger(observability.GetLogger()))
			if err != nil {
				return err
			}
			recipe.Apply(d, args[0])

			out := cmd.OutOrStdout()
			if final {
				fmt.Fprint(out, d.FinalScript())
			} else {
				fmt.Fprint(out, d.Script())
			}
			if opts := d.Options().Build(); opts != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "# casperjs options: %s\n", opts)
			}
			return nil
		},
	}

	flags := scriptCmd.Flags()
	flags.BoolVar(&final, "final", false, "include the closing step and casper.run()")
	flags.String("command", "", "casperjs binary (default \"casperjs\")")
	flags.String("user-agent", "", "User-Agent sent with every request")
	flags.String("wait-selector", "", "CSS selector to wait for after navigation")
	flags.Duration("selector-timeout", 0, "how long to wait for --wait-selector")
	flags.String("cookie-file", "", "JSON cookie jar loaded before navigation")
	flags.String("proxy", "", "proxy host:port for the engine")
	annotateViperKey(flags, "command", "engine.command")
	annotateViperKey(flags, "user-agent", "browser.user_agent")
	annotateViperKey(flags, "wait-selector", "fetch.wait_selector")
	annotateViperKey(flags, "selector-timeout", "fetch.selector_timeout")
	annotateViperKey(flags, "cookie-file", "browser.cookie_file")
	annotateViperKey(flags, "proxy", "engine.proxy")
	flags.StringArrayVarP(&ff.headers, "header", "H", nil, "extra request header as 'Name: value' (repeatable)")
	flags.StringArrayVar(&ff.clicks, "click", nil, "CSS selector to click after loading (repeatable)")
	flags.StringArrayVar(&ff.evaluate, "eval", nil, "JavaScript run inside the page (repeatable)")

	return scriptCmd
}
