package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AccountingConfig is the hot-reloadable part of the accounting setup.
type AccountingConfig struct {
	// PaymentMethods maps a POS payment method to the account subtype that receives the money.
	PaymentMethods map[string]string `mapstructure:"paymentMethods"`
	// ExpenseBankMethods lists the expense payment methods settled from the bank account.
	ExpenseBankMethods []string        `mapstructure:"expenseBankMethods"`
	Recurring          RecurringConfig `mapstructure:"recurring"`
}

type RecurringConfig struct {
	MaxCatchUp int `mapstructure:"maxCatchUp"`
}

func DefaultAccountingConfig() AccountingConfig {
	return AccountingConfig{
		PaymentMethods: map[string]string{
			"cash":          "cash",
			"card":          "bank",
			"debit_card":    "bank",
			"credit_card":   "bank",
			"bank_transfer": "bank",
			"qris":          "bank",
			"ewallet":       "bank",
			"credit":        "accounts_receivable",
			"receivable":    "accounts_receivable",
		},
		ExpenseBankMethods: []string{"bank_transfer"},
		Recurring: RecurringConfig{
			MaxCatchUp: 12,
		},
	}
}

// PaymentSubtype returns the account subtype for a payment method, or "" when unmapped.
func (c AccountingConfig) PaymentSubtype(method string) string {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		return ""
	}
	return c.PaymentMethods[method]
}

// IsExpenseBankMethod reports whether an expense paid with method leaves the bank account.
func (c AccountingConfig) IsExpenseBankMethod(method string) bool {
	method = strings.ToLower(strings.TrimSpace(method))
	for _, m := range c.ExpenseBankMethods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

type AccountingConfigHolder struct {
	current atomic.Value // holds AccountingConfig
	log     *zap.Logger
}

// NewAccountingConfigHolder reads accounting.yml (or the file at path) and watches it for changes.
// A missing file falls back to DefaultAccountingConfig.
func NewAccountingConfigHolder(path string, log *zap.Logger) (*AccountingConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("accounting")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/posledger")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("POSLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAccountingConfig()
	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		found = false
	}

	cfg := defaults
	if found {
		cfg = AccountingConfig{}
		if err := v.UnmarshalKey("accounting", &cfg); err != nil {
			return nil, err
		}
		cfg = mergeAccountingDefaults(cfg, defaults)
	}
	if err := validateAccountingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticAccountingConfigHolder(cfg)
	holder.log = log.Named("accounting-config")
	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		holder.reload(v, e.Name)
	})

	return holder, nil
}

// reload swaps in the config v now holds. An unreadable or invalid file keeps
// the previous config.
func (h *AccountingConfigHolder) reload(v *viper.Viper, source string) {
	var updated AccountingConfig
	if err := v.UnmarshalKey("accounting", &updated); err != nil {
		h.log.Warn("accounting config reload failed", zap.String("source", source), zap.Error(err))
		return
	}
	updated = mergeAccountingDefaults(updated, DefaultAccountingConfig())
	if err := validateAccountingConfig(updated); err != nil {
		h.log.Warn("invalid accounting config ignored", zap.String("source", source), zap.Error(err))
		return
	}
	h.current.Store(updated)
	h.log.Info("accounting config reloaded", zap.String("source", source))
}

// NewStaticAccountingConfigHolder wraps a fixed config without file watching.
func NewStaticAccountingConfigHolder(cfg AccountingConfig) *AccountingConfigHolder {
	holder := &AccountingConfigHolder{log: zap.NewNop()}
	holder.current.Store(cfg)
	return holder
}

func (h *AccountingConfigHolder) Get() AccountingConfig {
	if h == nil {
		return DefaultAccountingConfig()
	}
	return h.current.Load().(AccountingConfig)
}

func mergeAccountingDefaults(cfg, defaults AccountingConfig) AccountingConfig {
	if len(cfg.PaymentMethods) == 0 {
		cfg.PaymentMethods = defaults.PaymentMethods
	}
	if len(cfg.ExpenseBankMethods) == 0 {
		cfg.ExpenseBankMethods = defaults.ExpenseBankMethods
	}
	if cfg.Recurring.MaxCatchUp <= 0 {
		cfg.Recurring.MaxCatchUp = defaults.Recurring.MaxCatchUp
	}
	return cfg
}

func validateAccountingConfig(cfg AccountingConfig) error {
	for method, subtype := range cfg.PaymentMethods {
		if strings.TrimSpace(method) == "" || strings.TrimSpace(subtype) == "" {
			return errors.New("accounting.paymentMethods entries must have a method and a subtype")
		}
	}
	if cfg.Recurring.MaxCatchUp <= 0 {
		return errors.New("accounting.recurring.maxCatchUp must be positive")
	}
	return nil
}
