package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type SaleItem struct {
	Quantity decimal.Decimal
	// Cost is the unit cost of the product at the time of sale.
	Cost decimal.Decimal
}

type SalePayment struct {
	Method string
	Amount decimal.Decimal
}

// SaleEvent is emitted when an order is completed at the register.
type SaleEvent struct {
	OrderID     snowflake.ID
	OrderNumber string
	Total       decimal.Decimal
	CreatedAt   time.Time
	Items       []SaleItem
	Payments    []SalePayment
	UserID      string
}

// PaymentMethod is the method of the first recorded payment.
func (e SaleEvent) PaymentMethod() string {
	for _, payment := range e.Payments {
		if payment.Method != "" {
			return payment.Method
		}
	}
	return ""
}

// CostOfGoods is Σ(cost × qty) rounded to cents.
func (e SaleEvent) CostOfGoods() decimal.Decimal {
	total := decimal.Zero
	for _, item := range e.Items {
		total = total.Add(item.Cost.Mul(item.Quantity))
	}
	return total.Round(2)
}

type ExpenseEvent struct {
	ExpenseID snowflake.ID
	Amount    decimal.Decimal
	Date      time.Time
	Title     string
	// AccountSubtype picks the expense account; operating_expense when empty.
	AccountSubtype string
	PaymentMethod  string
	UserID         string
}

type PurchaseEvent struct {
	PurchaseOrderID snowflake.ID
	OrderNumber     string
	Total           decimal.Decimal
	OrderDate       time.Time
	SupplierName    string
	ActorID         string
}

type RefundEvent struct {
	RefundID     snowflake.ID
	RefundNumber string
	Amount       decimal.Decimal
	RefundedAt   time.Time
	ActorID      string
}
