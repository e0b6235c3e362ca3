package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	accountdomain "github.com/smallbiznis/posledger/internal/account/domain"
	journaldomain "github.com/smallbiznis/posledger/internal/journal/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const dateLayout = "2006-01-02"

var (
	asOf        string
	accountCode string
	fromDate    string
	toDate      string
)

var trialBalanceCmd = &cobra.Command{
	Use:   "trial-balance",
	Short: "Print debit and credit totals of every account",
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := parseDate(asOf)
		if err != nil {
			return err
		}

		var journal journaldomain.Service
		return runOneShot(cmd.Context(), func(ctx context.Context) error {
			tb, err := journal.TrialBalance(ctx, at)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "CODE\tACCOUNT\tDEBIT\tCREDIT\tBALANCE\t")
			for _, row := range tb.Rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
					row.Account.Code,
					row.Account.Name,
					row.Debit.StringFixed(2),
					row.Credit.StringFixed(2),
					row.Balance.StringFixed(2),
				)
			}
			fmt.Fprintf(w, "\tTOTAL\t%s\t%s\t\t\n", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
			if err := w.Flush(); err != nil {
				return err
			}
			if !tb.Balanced {
				return fmt.Errorf("trial balance as of %s does not balance", tb.AsOf.Format(dateLayout))
			}
			return nil
		}, fx.Populate(&journal))
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Print the general ledger of one account with a running balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		var rng journaldomain.DateRange
		var err error
		if fromDate != "" {
			if rng.From, err = parseDate(fromDate); err != nil {
				return err
			}
		}
		if toDate != "" {
			if rng.To, err = parseDate(toDate); err != nil {
				return err
			}
		}

		var (
			accounts accountdomain.Service
			journal  journaldomain.Service
		)
		return runOneShot(cmd.Context(), func(ctx context.Context) error {
			account, err := accounts.GetByCode(ctx, accountCode)
			if err != nil {
				return fmt.Errorf("account %s: %w", accountCode, err)
			}
			ledger, err := journal.LedgerFor(ctx, account.ID, rng)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "%s %s\n", ledger.Account.Code, ledger.Account.Name)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tENTRY\tDESCRIPTION\tDEBIT\tCREDIT\tBALANCE")
			fmt.Fprintf(w, "\t\tOpening balance\t\t\t%s\n", ledger.OpeningBalance.StringFixed(2))
			for _, row := range ledger.Rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					row.EntryDate.Format(dateLayout),
					row.EntryNumber,
					row.Description,
					row.Debit.StringFixed(2),
					row.Credit.StringFixed(2),
					row.RunningBalance.StringFixed(2),
				)
			}
			fmt.Fprintf(w, "\t\tClosing balance\t%s\t%s\t%s\n",
				ledger.TotalDebit.StringFixed(2),
				ledger.TotalCredit.StringFixed(2),
				ledger.ClosingBalance.StringFixed(2),
			)
			return w.Flush()
		}, fx.Populate(&accounts, &journal))
	},
}

func init() {
	trialBalanceCmd.Flags().StringVar(&asOf, "as-of", "", "report date (YYYY-MM-DD, default today)")
	ledgerCmd.Flags().StringVar(&accountCode, "account", "", "account code, e.g. 1100")
	ledgerCmd.Flags().StringVar(&fromDate, "from", "", "first day (YYYY-MM-DD)")
	ledgerCmd.Flags().StringVar(&toDate, "to", "", "last day (YYYY-MM-DD)")
	_ = ledgerCmd.MarkFlagRequired("account")
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	day, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return day, nil
}
