package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	SkipReasonDisabled       = "disabled"
	SkipReasonMissingAccount = "missing_account"
	SkipReasonAmbiguous      = "ambiguous_account"
	SkipReasonZeroAmount     = "zero_amount"
)

// AccountingMetrics tracks journal entry creation and the events that produced none.
type AccountingMetrics struct {
	entriesCreated *prometheus.CounterVec
	entriesSkipped *prometheus.CounterVec
	entriesPosted  prometheus.Counter
	entriesVoided  prometheus.Counter
	entriesReversed prometheus.Counter
}

var (
	accountingMetricsOnce sync.Once
	accountingMetrics     *AccountingMetrics
)

// Accounting returns the singleton accounting metrics registry.
func Accounting() *AccountingMetrics {
	return AccountingWithConfig(Config{})
}

// AccountingWithConfig returns the singleton accounting metrics registry using config labels.
func AccountingWithConfig(cfg Config) *AccountingMetrics {
	accountingMetricsOnce.Do(func() {
		accountingMetrics = newAccountingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return accountingMetrics
}

// ResetAccountingMetricsForTest resets the accounting metrics singleton for tests.
func ResetAccountingMetricsForTest() {
	accountingMetricsOnce = sync.Once{}
	accountingMetrics = nil
}

// NewAccountingMetricsForTest registers a fresh set of collectors on registerer.
func NewAccountingMetricsForTest(registerer prometheus.Registerer) *AccountingMetrics {
	return newAccountingMetrics(registerer, Config{Environment: "test"})
}

func newAccountingMetrics(registerer prometheus.Registerer, cfg Config) *AccountingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := cfg.constLabels()

	entriesCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "posledger_accounting_entries_created_total",
		Help:        "Journal entries created by source.",
		ConstLabels: constLabels,
	}, []string{"source"})
	entriesSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "posledger_accounting_skipped_total",
		Help:        "Business events that produced no journal entry, by reason.",
		ConstLabels: constLabels,
	}, []string{"source", "reason"})
	entriesPosted := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "posledger_accounting_entries_posted_total",
		Help:        "Draft journal entries transitioned to posted.",
		ConstLabels: constLabels,
	})
	entriesVoided := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "posledger_accounting_entries_voided_total",
		Help:        "Draft journal entries voided.",
		ConstLabels: constLabels,
	})
	entriesReversed := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "posledger_accounting_entries_reversed_total",
		Help:        "Posted journal entries reversed by an offsetting entry.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		entriesCreated,
		entriesSkipped,
		entriesPosted,
		entriesVoided,
		entriesReversed,
	)

	return &AccountingMetrics{
		entriesCreated: entriesCreated,
		entriesSkipped: entriesSkipped,
		entriesPosted:  entriesPosted,
		entriesVoided:  entriesVoided,
		entriesReversed: entriesReversed,
	}
}

func (m *AccountingMetrics) IncEntryCreated(source string) {
	if m == nil {
		return
	}
	m.entriesCreated.WithLabelValues(source).Inc()
}

func (m *AccountingMetrics) IncSkipped(source, reason string) {
	if m == nil {
		return
	}
	m.entriesSkipped.WithLabelValues(source, reason).Inc()
}

func (m *AccountingMetrics) IncPosted() {
	if m == nil {
		return
	}
	m.entriesPosted.Inc()
}

func (m *AccountingMetrics) IncVoided() {
	if m == nil {
		return
	}
	m.entriesVoided.Inc()
}

func (m *AccountingMetrics) IncReversed() {
	if m == nil {
		return
	}
	m.entriesReversed.Inc()
}

// SkippedCount exposes the skipped counter for source and reason.
func (m *AccountingMetrics) SkippedCount(source, reason string) prometheus.Counter {
	return m.entriesSkipped.WithLabelValues(source, reason)
}

// CreatedCount exposes the created counter for source.
func (m *AccountingMetrics) CreatedCount(source string) prometheus.Counter {
	return m.entriesCreated.WithLabelValues(source)
}
