package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/posledger/internal/account/domain"
)

// DateRange is an inclusive calendar-date window. A zero From means
// "since the first entry"; a zero To means "no upper bound".
type DateRange struct {
	From time.Time
	To   time.Time
}

// LedgerLine is one posted line touching an account, joined with its entry header.
type LedgerLine struct {
	LineID           snowflake.ID
	EntryID          snowflake.ID
	EntryNumber      string
	EntryDate        time.Time
	Reference        string
	EntryDescription string
	LineDescription  string
	Debit            decimal.Decimal
	Credit           decimal.Decimal
	LineOrder        int
}

type LedgerRow struct {
	EntryID        snowflake.ID    `json:"entry_id"`
	EntryNumber    string          `json:"entry_number"`
	EntryDate      time.Time       `json:"entry_date"`
	Reference      string          `json:"reference,omitempty"`
	Description    string          `json:"description,omitempty"`
	LineID         snowflake.ID    `json:"line_id"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	Net            decimal.Decimal `json:"net"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

type Ledger struct {
	Account        accountdomain.Account `json:"account"`
	Range          DateRange             `json:"range"`
	OpeningBalance decimal.Decimal       `json:"opening_balance"`
	ClosingBalance decimal.Decimal       `json:"closing_balance"`
	TotalDebit     decimal.Decimal       `json:"total_debit"`
	TotalCredit    decimal.Decimal       `json:"total_credit"`
	Rows           []LedgerRow           `json:"rows"`
}

// BuildLedger folds lines, already in posting order, into rows with a running balance.
func BuildLedger(account accountdomain.Account, rng DateRange, opening decimal.Decimal, lines []LedgerLine) Ledger {
	ledger := Ledger{
		Account:        account,
		Range:          rng,
		OpeningBalance: opening,
		TotalDebit:     decimal.Zero,
		TotalCredit:    decimal.Zero,
		Rows:           make([]LedgerRow, 0, len(lines)),
	}

	running := opening
	for _, line := range lines {
		net := NetEffect(account.Type, line.Debit, line.Credit)
		running = running.Add(net)
		ledger.TotalDebit = ledger.TotalDebit.Add(line.Debit)
		ledger.TotalCredit = ledger.TotalCredit.Add(line.Credit)

		description := line.LineDescription
		if description == "" {
			description = line.EntryDescription
		}
		ledger.Rows = append(ledger.Rows, LedgerRow{
			EntryID:        line.EntryID,
			EntryNumber:    line.EntryNumber,
			EntryDate:      line.EntryDate,
			Reference:      line.Reference,
			Description:    description,
			LineID:         line.LineID,
			Debit:          line.Debit,
			Credit:         line.Credit,
			Net:            net,
			RunningBalance: running,
		})
	}
	ledger.ClosingBalance = running
	return ledger
}

type AccountBalance struct {
	Account accountdomain.Account `json:"account"`
	AsOf    time.Time             `json:"as_of"`
	Debit   decimal.Decimal       `json:"debit"`
	Credit  decimal.Decimal       `json:"credit"`
	Balance decimal.Decimal       `json:"balance"`
}

type TrialBalance struct {
	AsOf        time.Time        `json:"as_of"`
	Rows        []AccountBalance `json:"rows"`
	TotalDebit  decimal.Decimal  `json:"total_debit"`
	TotalCredit decimal.Decimal  `json:"total_credit"`
	Balanced    bool             `json:"balanced"`
}

// AccountTotals is the raw debit/credit sum of posted lines for one account.
type AccountTotals struct {
	AccountID snowflake.ID
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}
