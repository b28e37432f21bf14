package commands

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"sjsage522/meliscraper/config"
)

func init() {
	rootCmd.AddCommand(countriesCmd)
}

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "Lists the supported marketplace sites.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printCountries(cmd.OutOrStdout())
	},
}

func printCountries(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Country", "Code", "Site", "Domain", "Currency"})
	for _, c := range config.Countries() {
		t.AppendRow(table.Row{c.Name, c.Code, c.SiteID, c.Domain, c.Currency + " (" + c.CurrencySymbol + ")"})
	}
	t.Render()
}
