package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full runtime configuration, populated from viper.
type Config struct {
	DatabasePath string
	PatternsFile string

	Budget    Budget
	Gateway   Gateway
	Scheduler Scheduler
	Tunables  Tunables
}

// Budget configures the spending ceilings for external analysis.
type Budget struct {
	MonthlyCeiling     float64 // Currency units per month
	DailyCallCap       int     // Hard cap on external calls per day
	PerCallEstimate    float64 // Minimum expected cost of one call
	EmergencyAllowance float64 // Fraction of the daily ceiling reserved for the critical lane
}

// Gateway configures the external analysis client.
type Gateway struct {
	Provider          string
	APIKey            string
	Model             string
	RequestTimeout    time.Duration
	RateLimit         int // Requests per minute
	OptimalBatchSize  int
	MaxBatchSize      int
	InputPricePerTok  float64
	OutputPricePerTok float64
}

// Scheduler configures the cadence windows and drain intervals.
type Scheduler struct {
	WeekendBatchDay  time.Weekday // Large weekend-error batch
	CorrelationDay   time.Weekday // Cross-context correlation pass
	SynthesisDay     time.Weekday // Synthesis/report pass
	CriticalInterval time.Duration
	GeneralInterval  time.Duration
	MaxRetries       int
}

// Tunables are the empirically calibrated scoring constants. They are
// configuration, not contract: the defaults reproduce the documented
// behavior but every value can be overridden.
type Tunables struct {
	BaseConfidence      float64 // Starting score for any candidate match
	RuleMatchBonus      float64 // Added when the signature rule matches
	ContextHintBonus    float64 // Added per aligned context hint
	LocalMatchThreshold float64 // Default accept threshold when a pattern has none
	EscalationThreshold float64 // Below this, the error is treated as novel
	DefaultSuccessRate  float64 // success_rate assigned to newly discovered patterns
	FeedbackWeight      float64 // EMA weight for effectiveness updates
	ConfidenceReward    float64 // Confidence nudge on reported success
	ConfidencePenalty   float64 // Confidence nudge on reported failure
	ConfidenceFloor     float64
	RetentionDays       int     // Cleanup: entries older than this...
	MinUsageToRetain    int64   // ...with fewer uses than this are removed
	IneffectiveRate     float64 // Cleanup: success_rate floor...
	IneffectiveMinUses  int64   // ...for entries with more uses than this
	MemoSize            int     // LRU bound on the classifier memo
}

// DefaultTunables returns the calibrated scoring defaults.
func DefaultTunables() Tunables {
	return Tunables{
		BaseConfidence:      70,
		RuleMatchBonus:      20,
		ContextHintBonus:    10,
		LocalMatchThreshold: 85,
		EscalationThreshold: 70,
		DefaultSuccessRate:  85,
		FeedbackWeight:      0.1,
		ConfidenceReward:    2,
		ConfidencePenalty:   5,
		ConfidenceFloor:     50,
		RetentionDays:       90,
		MinUsageToRetain:    3,
		IneffectiveRate:     30,
		IneffectiveMinUses:  5,
		MemoSize:            1000,
	}
}

// SetDefaults registers every recognized option with viper.
func SetDefaults() {
	viper.SetDefault("database.path", "~/.local/share/errsage/errsage.db")
	viper.SetDefault("patterns.file", "")

	viper.SetDefault("budget.monthly_ceiling", 50.0)
	viper.SetDefault("budget.daily_call_cap", 10)
	viper.SetDefault("budget.per_call_estimate", 0.15)
	viper.SetDefault("budget.emergency_allowance", 0.10)

	viper.SetDefault("gateway.provider", "anthropic")
	viper.SetDefault("gateway.model", "claude-3-sonnet-20240229")
	viper.SetDefault("gateway.request_timeout", "120s")
	viper.SetDefault("gateway.rate_limit", 10)
	viper.SetDefault("gateway.optimal_batch_size", 12)
	viper.SetDefault("gateway.max_batch_size", 20)
	viper.SetDefault("gateway.input_price_per_1k", 0.003)
	viper.SetDefault("gateway.output_price_per_1k", 0.015)

	viper.SetDefault("scheduler.weekend_batch_day", "Monday")
	viper.SetDefault("scheduler.correlation_day", "Wednesday")
	viper.SetDefault("scheduler.synthesis_day", "Friday")
	viper.SetDefault("scheduler.critical_interval", "30s")
	viper.SetDefault("scheduler.general_interval", "1h")
	viper.SetDefault("scheduler.max_retries", 3)

	t := DefaultTunables()
	viper.SetDefault("tunables.base_confidence", t.BaseConfidence)
	viper.SetDefault("tunables.rule_match_bonus", t.RuleMatchBonus)
	viper.SetDefault("tunables.context_hint_bonus", t.ContextHintBonus)
	viper.SetDefault("tunables.local_match_threshold", t.LocalMatchThreshold)
	viper.SetDefault("tunables.escalation_threshold", t.EscalationThreshold)
	viper.SetDefault("tunables.default_success_rate", t.DefaultSuccessRate)
	viper.SetDefault("tunables.feedback_weight", t.FeedbackWeight)
	viper.SetDefault("tunables.confidence_reward", t.ConfidenceReward)
	viper.SetDefault("tunables.confidence_penalty", t.ConfidencePenalty)
	viper.SetDefault("tunables.confidence_floor", t.ConfidenceFloor)
	viper.SetDefault("tunables.retention_days", t.RetentionDays)
	viper.SetDefault("tunables.min_usage_to_retain", t.MinUsageToRetain)
	viper.SetDefault("tunables.ineffective_rate", t.IneffectiveRate)
	viper.SetDefault("tunables.ineffective_min_uses", t.IneffectiveMinUses)
	viper.SetDefault("tunables.memo_size", t.MemoSize)
}

// Load builds a Config from the current viper state.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath: ExpandPath(viper.GetString("database.path")),
		PatternsFile: ExpandPath(viper.GetString("patterns.file")),
		Budget: Budget{
			MonthlyCeiling:     viper.GetFloat64("budget.monthly_ceiling"),
			DailyCallCap:       viper.GetInt("budget.daily_call_cap"),
			PerCallEstimate:    viper.GetFloat64("budget.per_call_estimate"),
			EmergencyAllowance: viper.GetFloat64("budget.emergency_allowance"),
		},
		Gateway: Gateway{
			Provider:          viper.GetString("gateway.provider"),
			APIKey:            viper.GetString("gateway.api_key"),
			Model:             viper.GetString("gateway.model"),
			RequestTimeout:    viper.GetDuration("gateway.request_timeout"),
			RateLimit:         viper.GetInt("gateway.rate_limit"),
			OptimalBatchSize:  viper.GetInt("gateway.optimal_batch_size"),
			MaxBatchSize:      viper.GetInt("gateway.max_batch_size"),
			InputPricePerTok:  viper.GetFloat64("gateway.input_price_per_1k") / 1000,
			OutputPricePerTok: viper.GetFloat64("gateway.output_price_per_1k") / 1000,
		},
		Scheduler: Scheduler{
			CriticalInterval: viper.GetDuration("scheduler.critical_interval"),
			GeneralInterval:  viper.GetDuration("scheduler.general_interval"),
			MaxRetries:       viper.GetInt("scheduler.max_retries"),
		},
		Tunables: Tunables{
			BaseConfidence:      viper.GetFloat64("tunables.base_confidence"),
			RuleMatchBonus:      viper.GetFloat64("tunables.rule_match_bonus"),
			ContextHintBonus:    viper.GetFloat64("tunables.context_hint_bonus"),
			LocalMatchThreshold: viper.GetFloat64("tunables.local_match_threshold"),
			EscalationThreshold: viper.GetFloat64("tunables.escalation_threshold"),
			DefaultSuccessRate:  viper.GetFloat64("tunables.default_success_rate"),
			FeedbackWeight:      viper.GetFloat64("tunables.feedback_weight"),
			ConfidenceReward:    viper.GetFloat64("tunables.confidence_reward"),
			ConfidencePenalty:   viper.GetFloat64("tunables.confidence_penalty"),
			ConfidenceFloor:     viper.GetFloat64("tunables.confidence_floor"),
			RetentionDays:       viper.GetInt("tunables.retention_days"),
			MinUsageToRetain:    viper.GetInt64("tunables.min_usage_to_retain"),
			IneffectiveRate:     viper.GetFloat64("tunables.ineffective_rate"),
			IneffectiveMinUses:  viper.GetInt64("tunables.ineffective_min_uses"),
			MemoSize:            viper.GetInt("tunables.memo_size"),
		},
	}

	for key, dst := range map[string]*time.Weekday{
		"scheduler.weekend_batch_day": &cfg.Scheduler.WeekendBatchDay,
		"scheduler.correlation_day":   &cfg.Scheduler.CorrelationDay,
		"scheduler.synthesis_day":     &cfg.Scheduler.SynthesisDay,
	} {
		day, err := parseWeekday(viper.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = day
	}

	if cfg.Budget.MonthlyCeiling <= 0 {
		return nil, fmt.Errorf("budget.monthly_ceiling must be positive")
	}
	if cfg.Gateway.MaxBatchSize < cfg.Gateway.OptimalBatchSize {
		return nil, fmt.Errorf("gateway.max_batch_size must be >= optimal_batch_size")
	}

	return cfg, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	days := map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday,
		"friday": time.Friday, "saturday": time.Saturday,
	}
	if d, ok := days[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unrecognized weekday %q", s)
}
