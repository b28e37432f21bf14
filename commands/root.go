package commands

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"sjsage522/meliscraper/config"
)

var rootCmd = &cobra.Command{
	Use:           "meliscraper",
	Short:         "meliscraper scrapes marketplace search results into product records and market reports.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// optionFlag binds a command-line flag to a configuration key.
type optionFlag struct {
	name   string
	key    string
	usage  string
	toggle bool
}

func registerOptionFlags(flags *pflag.FlagSet, options []optionFlag) {
	for _, o := range options {
		flags.String(o.name, "", o.usage)
		if o.toggle {
			flags.Lookup(o.name).NoOptDefVal = "true"
		}
	}
}

// applyOptionFlags copies every flag the user set onto cfg.
func applyOptionFlags(flags *pflag.FlagSet, cfg *config.Config, options []optionFlag) {
	for _, o := range options {
		if !flags.Changed(o.name) {
			continue
		}
		value, err := flags.GetString(o.name)
		if err != nil {
			continue
		}
		cfg.Set(o.key, value)
	}
}
