package commands

import (
	"github.com/spf13/cobra"

	"sjsage522/meliscraper/config"
	"sjsage522/meliscraper/internal/analysis"
	"sjsage522/meliscraper/logger"
	"sjsage522/meliscraper/services/publisher"
)

var reportOptions = []optionFlag{
	{name: "country", key: "COUNTRY", usage: "country whose currency symbol formats prices"},
	{name: "arbitrage", key: "DETECT_ARBITRAGE", usage: "detect price arbitrage", toggle: true},
	{name: "min-percent", key: "ARBITRAGE_MIN_PERCENT", usage: "minimum arbitrage price difference in percent"},
	{name: "min-difference", key: "ARBITRAGE_MIN_DIFFERENCE", usage: "minimum arbitrage absolute price difference"},
}

var (
	reportOutput  *string
	reportRecords *bool
)

func init() {
	registerOptionFlags(reportCmd.Flags(), reportOptions)
	reportOutput = reportCmd.Flags().StringP("output", "o", "", "also write the report as JSON to this path")
	reportRecords = reportCmd.Flags().Bool("records", false, "print the dataset records as a table")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report [dataset.jsonl]",
	Short: "Builds the market report from a JSON lines dataset written by scrape.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		applyOptionFlags(cmd.Flags(), cfg, reportOptions)
		if err := cfg.Validate(); err != nil {
			return err
		}

		path := cfg.DatasetPath
		if len(args) == 1 {
			path = args[0]
		}
		records, err := publisher.ReadDataset(path)
		if err != nil {
			return err
		}

		report, err := analysis.GenerateReport(records, analysis.ReportOptions{
			Thresholds: analysis.Thresholds{
				MinPercent:    cfg.ArbitrageMinPercent,
				MinDifference: cfg.ArbitrageMinDifference,
				KeyLength:     analysis.DefaultThresholds().KeyLength,
			},
			DetectArbitrage: cfg.DetectArbitrage,
			CurrencySymbol:  cfg.SelectedCountry().CurrencySymbol,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if *reportRecords {
			analysis.PrintRecords(out, records)
		}
		analysis.PrintReport(out, report)

		if *reportOutput != "" {
			if err := analysis.SaveReport(*reportOutput, report); err != nil {
				return err
			}
			logger.ForAnalysis().Info().Str("path", *reportOutput).Msg("Report saved")
		}
		return nil
	},
}
