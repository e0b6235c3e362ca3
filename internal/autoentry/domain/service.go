package domain

import (
	"context"
	"errors"

	journaldomain "github.com/smallbiznis/posledger/internal/journal/domain"
)

// Service turns business events into posted journal entries. A nil entry
// with a nil error means accounting is disabled or not configured for the
// event.
type Service interface {
	Enabled() bool
	CreateSaleEntry(ctx context.Context, event SaleEvent) (*journaldomain.JournalEntry, error)
	CreateExpenseEntry(ctx context.Context, event ExpenseEvent) (*journaldomain.JournalEntry, error)
	CreatePurchaseEntry(ctx context.Context, event PurchaseEvent) (*journaldomain.JournalEntry, error)
	CreateRefundEntry(ctx context.Context, event RefundEvent) (*journaldomain.JournalEntry, error)
}

var (
	ErrInvalidEvent  = errors.New("invalid_event")
	ErrInvalidAmount = errors.New("invalid_amount")
)
