package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/fscore-cli/internal/model"
)

var (
	quarantineUnconfirmed bool
	quarantineSuffix      string
)

var quarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: "Review symbols excluded from extraction",
}

var quarantineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quarantined symbols",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "quarantine")
		if err != nil {
			return err
		}
		defer env.Close()

		records, err := env.Ledger.List(ctx, quarantineUnconfirmed)
		if err != nil {
			return err
		}
		formatQuarantineList(cmd.OutOrStdout(), records)
		return nil
	},
}

var quarantineConfirmCmd = &cobra.Command{
	Use:   "confirm TICKER",
	Short: "Mark a quarantine record as reviewed; the symbol stays excluded",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "quarantine")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Ledger.Confirm(ctx, args[0], quarantineSuffix); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "confirmed %s.%s\n", args[0], quarantineSuffix)
		return nil
	},
}

var quarantineClearCmd = &cobra.Command{
	Use:   "clear TICKER",
	Short: "Remove a quarantine record so the symbol is extracted again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "quarantine")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Ledger.Clear(ctx, args[0], quarantineSuffix); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cleared %s.%s\n", args[0], quarantineSuffix)
		return nil
	},
}

// formatQuarantineList writes a tabular list of records to w.
func formatQuarantineList(out io.Writer, records []model.QuarantineRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TICKER\tSUFFIX\tCOUNTRY\tCONFIRMED\tREASON")
	_, _ = fmt.Fprintln(w, "------\t------\t-------\t---------\t------")
	for _, r := range records {
		reason := r.Reason
		if len(reason) > 60 {
			reason = reason[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", r.Ticker, r.Suffix, r.Country, r.ConfirmedManually, reason)
	}
	_ = w.Flush()
}

func init() {
	quarantineListCmd.Flags().BoolVar(&quarantineUnconfirmed, "unconfirmed", false, "only records not yet reviewed")
	for _, c := range []*cobra.Command{quarantineConfirmCmd, quarantineClearCmd} {
		c.Flags().StringVar(&quarantineSuffix, "suffix", "", "exchange suffix the symbol was requested with (country code when none)")
		_ = c.MarkFlagRequired("suffix")
	}
	quarantineCmd.AddCommand(quarantineListCmd, quarantineConfirmCmd, quarantineClearCmd)
	rootCmd.AddCommand(quarantineCmd)
}
