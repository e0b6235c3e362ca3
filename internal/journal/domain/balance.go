package domain

import (
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/posledger/internal/account/domain"
)

// AmountScale is the number of decimal places amounts are stored with.
const AmountScale = 2

// Totals sums the debit and credit sides of lines.
func Totals(lines []JournalLine) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// ValidateBalanced checks the double-entry law on a persisted line set.
func ValidateBalanced(lines []JournalLine) error {
	if len(lines) < 2 {
		return ErrTooFewLines
	}
	debit, credit := Totals(lines)
	if !debit.Equal(credit) {
		return ErrUnbalancedEntry
	}
	if debit.IsZero() {
		return ErrZeroAmountEntry
	}
	return nil
}

// ValidateLineInputs checks line shape and balance before anything is written.
func ValidateLineInputs(lines []LineInput) error {
	if len(lines) < 2 {
		return ErrTooFewLines
	}
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range lines {
		if line.AccountID == 0 {
			return ErrInvalidLine
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return ErrInvalidAmount
		}
		if !isScaled(line.Debit) || !isScaled(line.Credit) {
			return ErrInvalidAmount
		}
		// Exactly one side carries the amount.
		if line.Debit.IsZero() == line.Credit.IsZero() {
			return ErrInvalidLine
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return ErrUnbalancedEntry
	}
	return nil
}

func isScaled(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(AmountScale))
}

// NetEffect is the signed change a line makes to an account of type t:
// debit minus credit for debit-normal accounts, credit minus debit otherwise.
func NetEffect(t accountdomain.AccountType, debit, credit decimal.Decimal) decimal.Decimal {
	if t.DebitNormal() {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}
