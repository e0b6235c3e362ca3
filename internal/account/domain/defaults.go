package domain

// DefaultAccount describes one row of the standard chart of accounts.
type DefaultAccount struct {
	Code      string
	Name      string
	NameLocal string
	Type      AccountType
	Subtype   string
}

// DefaultChart is the chart installed by SeedDefaultAccounts.
var DefaultChart = []DefaultAccount{
	{"1100", "Cash", "Kas", AccountTypeAsset, SubtypeCash},
	{"1200", "Bank", "Bank", AccountTypeAsset, SubtypeBank},
	{"1300", "Accounts Receivable", "Piutang Usaha", AccountTypeAsset, SubtypeAccountsReceivable},
	{"1400", "Inventory", "Persediaan", AccountTypeAsset, SubtypeInventory},
	{"2100", "Accounts Payable", "Utang Usaha", AccountTypeLiability, SubtypeAccountsPayable},
	{"2200", "Tax Payable", "Utang Pajak", AccountTypeLiability, SubtypeTaxPayable},
	{"3100", "Owner's Equity", "Modal Pemilik", AccountTypeEquity, SubtypeOwnerEquity},
	{"3200", "Retained Earnings", "Laba Ditahan", AccountTypeEquity, SubtypeRetainedEarnings},
	{"4100", "Sales Revenue", "Pendapatan Penjualan", AccountTypeIncome, SubtypeSales},
	{"4200", "Other Income", "Pendapatan Lain-lain", AccountTypeIncome, SubtypeOtherIncome},
	{"5100", "Cost of Goods Sold", "Harga Pokok Penjualan", AccountTypeExpense, SubtypeCostOfGoodsSold},
	{"5200", "Operating Expense", "Beban Operasional", AccountTypeExpense, SubtypeOperatingExpense},
	{"5300", "Salaries", "Beban Gaji", AccountTypeExpense, SubtypeSalaryExpense},
	{"5400", "Rent", "Beban Sewa", AccountTypeExpense, SubtypeRentExpense},
	{"5500", "Utilities", "Beban Utilitas", AccountTypeExpense, SubtypeUtilitiesExpense},
}
