package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// AccountType is the top-level classification of an account.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	default:
		return false
	}
}

// DebitNormal reports whether balances of this type grow with debits.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// CodePrefix is the leading digit codes of this type conventionally start with.
func (t AccountType) CodePrefix() byte {
	switch t {
	case AccountTypeAsset:
		return '1'
	case AccountTypeLiability:
		return '2'
	case AccountTypeEquity:
		return '3'
	case AccountTypeIncome:
		return '4'
	case AccountTypeExpense:
		return '5'
	default:
		return 0
	}
}

// Subtypes the entry builder looks up.
const (
	SubtypeCash               = "cash"
	SubtypeBank               = "bank"
	SubtypeAccountsReceivable = "accounts_receivable"
	SubtypeInventory          = "inventory"
	SubtypeAccountsPayable    = "accounts_payable"
	SubtypeTaxPayable         = "tax_payable"
	SubtypeOwnerEquity        = "owner_equity"
	SubtypeRetainedEarnings   = "retained_earnings"
	SubtypeSales              = "sales"
	SubtypeOtherIncome        = "other_income"
	SubtypeCostOfGoodsSold    = "cost_of_goods_sold"
	SubtypeOperatingExpense   = "operating_expense"
	SubtypeSalaryExpense      = "salary_expense"
	SubtypeRentExpense        = "rent_expense"
	SubtypeUtilitiesExpense   = "utilities_expense"
)

type Account struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Code        string       `gorm:"size:16;not null;uniqueIndex:ux_accounts_code" json:"code"`
	Name        string       `gorm:"size:128;not null" json:"name"`
	NameLocal   string       `gorm:"size:128" json:"name_local,omitempty"`
	Type        AccountType  `gorm:"size:16;not null" json:"type"`
	Subtype     string       `gorm:"size:64;not null;index:idx_accounts_subtype" json:"subtype"`
	IsDefault   bool         `gorm:"not null" json:"is_default"`
	IsSystem    bool         `gorm:"not null" json:"is_system"`
	Description string       `gorm:"size:255" json:"description,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }
