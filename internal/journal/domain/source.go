package domain

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

const (
	SourceTypeOrder             = "order"
	SourceTypeExpense           = "expense"
	SourceTypePurchaseOrder     = "purchase_order"
	SourceTypeRefund            = "refund"
	SourceTypeRecurringTemplate = "recurring_template"
	SourceTypeJournalEntry      = "journal_entry"
)

// SourceRef points back at the business object an entry was generated from.
// The set of implementations is closed to this package.
type SourceRef interface {
	SourceType() string
	SourceID() snowflake.ID
	isSourceRef()
}

type OrderRef struct{ ID snowflake.ID }

func (r OrderRef) SourceType() string     { return SourceTypeOrder }
func (r OrderRef) SourceID() snowflake.ID { return r.ID }
func (OrderRef) isSourceRef()             {}

type ExpenseRef struct{ ID snowflake.ID }

func (r ExpenseRef) SourceType() string     { return SourceTypeExpense }
func (r ExpenseRef) SourceID() snowflake.ID { return r.ID }
func (ExpenseRef) isSourceRef()             {}

type PurchaseOrderRef struct{ ID snowflake.ID }

func (r PurchaseOrderRef) SourceType() string     { return SourceTypePurchaseOrder }
func (r PurchaseOrderRef) SourceID() snowflake.ID { return r.ID }
func (PurchaseOrderRef) isSourceRef()             {}

type RefundRef struct{ ID snowflake.ID }

func (r RefundRef) SourceType() string     { return SourceTypeRefund }
func (r RefundRef) SourceID() snowflake.ID { return r.ID }
func (RefundRef) isSourceRef()             {}

type RecurringTemplateRef struct{ ID snowflake.ID }

func (r RecurringTemplateRef) SourceType() string     { return SourceTypeRecurringTemplate }
func (r RecurringTemplateRef) SourceID() snowflake.ID { return r.ID }
func (RecurringTemplateRef) isSourceRef()             {}

type JournalEntryRef struct{ ID snowflake.ID }

func (r JournalEntryRef) SourceType() string     { return SourceTypeJournalEntry }
func (r JournalEntryRef) SourceID() snowflake.ID { return r.ID }
func (JournalEntryRef) isSourceRef()             {}

func ParseSourceRef(sourceType string, id snowflake.ID) (SourceRef, error) {
	if id == 0 {
		return nil, ErrInvalidSourceRef
	}
	switch sourceType {
	case SourceTypeOrder:
		return OrderRef{ID: id}, nil
	case SourceTypeExpense:
		return ExpenseRef{ID: id}, nil
	case SourceTypePurchaseOrder:
		return PurchaseOrderRef{ID: id}, nil
	case SourceTypeRefund:
		return RefundRef{ID: id}, nil
	case SourceTypeRecurringTemplate:
		return RecurringTemplateRef{ID: id}, nil
	case SourceTypeJournalEntry:
		return JournalEntryRef{ID: id}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSourceRef, sourceType)
	}
}

// DedupeKey is the idempotency key for an entry generated from ref.
func DedupeKey(ref SourceRef) string {
	return fmt.Sprintf("%s:%s", ref.SourceType(), ref.SourceID())
}
