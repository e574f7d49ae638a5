package domain

import (
	"time"

	"github.com/go-playground/validator/v10"

	"alertrecon/internal/core/scorer"
	"alertrecon/internal/platform/config"
	perr "alertrecon/internal/platform/errors"
)

// Config is the typed engine configuration, validated at load.
// Violations abort startup
type Config struct {
	IntervalSeconds     int  `validate:"gte=60,lte=86400"`
	BatchSize           int  `validate:"gte=1,lte=500"`
	LookbackHours       int  `validate:"gte=1,lte=336"`
	ActionsEnabled      bool
	StartImmediately    bool
	StopGraceSeconds    int `validate:"gte=1,lte=600"`
	ErrorBackoffSeconds int `validate:"gte=1,lte=3600"`

	Weights    map[string]float64
	Thresholds scorer.Thresholds

	MaxAlternatives     int     `validate:"gte=0,lte=20"`
	AmbiguousCandidates int     `validate:"gte=1,lte=20"`
	MaxTieDifference    float64 `validate:"gte=0,lte=0.5"`
	PreferRecent        bool

	WindowHours   int     `validate:"gte=1,lte=336"`
	TolerancePct  float64 `validate:"gt=0,lte=10"`
	MaxCandidates int     `validate:"gte=1,lte=500"`

	RetentionEmailDays int `validate:"gte=1,lte=3650"`
	RetentionAuditDays int `validate:"gte=1,lte=3650"`

	MetricsWindow int `validate:"gte=1,lte=1000"`
}

// DefaultConfig returns the shipped defaults
func DefaultConfig() Config {
	return Config{
		IntervalSeconds:     300,
		BatchSize:           100,
		LookbackHours:       48,
		ActionsEnabled:      true,
		StartImmediately:    true,
		StopGraceSeconds:    30,
		ErrorBackoffSeconds: 60,
		Weights:             scorer.DefaultWeights(),
		Thresholds:          scorer.DefaultThresholds(),
		MaxAlternatives:     5,
		AmbiguousCandidates: 2,
		MaxTieDifference:    0.05,
		PreferRecent:        true,
		WindowHours:         48,
		TolerancePct:        1.0,
		MaxCandidates:       50,
		RetentionEmailDays:  30,
		RetentionAuditDays:  90,
		MetricsWindow:       100,
	}
}

// FromEnv overlays environment values onto the defaults.
// The caller still runs Validate before using the result
func FromEnv(cfg config.Conf) Config {
	c := DefaultConfig()
	ec := cfg.Prefix("ENGINE_")
	c.IntervalSeconds = ec.MayInt("INTERVAL_SECONDS", c.IntervalSeconds)
	c.BatchSize = ec.MayInt("BATCH_SIZE", c.BatchSize)
	c.LookbackHours = ec.MayInt("LOOKBACK_HOURS", c.LookbackHours)
	c.ActionsEnabled = ec.MayBool("ACTIONS_ENABLED", c.ActionsEnabled)
	c.StartImmediately = ec.MayBool("START_IMMEDIATELY", c.StartImmediately)
	c.StopGraceSeconds = ec.MayInt("STOP_GRACE_SECONDS", c.StopGraceSeconds)
	c.ErrorBackoffSeconds = ec.MayInt("ERROR_BACKOFF_SECONDS", c.ErrorBackoffSeconds)

	c.Thresholds.Reject = ec.MayFloat64("THRESHOLD_REJECT", c.Thresholds.Reject)
	c.Thresholds.NeedsReview = ec.MayFloat64("THRESHOLD_REVIEW", c.Thresholds.NeedsReview)
	c.Thresholds.AutoMatch = ec.MayFloat64("THRESHOLD_AUTO_MATCH", c.Thresholds.AutoMatch)

	c.MaxAlternatives = ec.MayInt("MAX_ALTERNATIVES", c.MaxAlternatives)
	c.AmbiguousCandidates = ec.MayInt("AMBIGUOUS_CANDIDATES", c.AmbiguousCandidates)
	c.MaxTieDifference = ec.MayFloat64("MAX_TIE_DIFFERENCE", c.MaxTieDifference)
	c.PreferRecent = ec.MayBool("PREFER_RECENT", c.PreferRecent)

	c.WindowHours = ec.MayInt("WINDOW_HOURS", c.WindowHours)
	c.TolerancePct = ec.MayFloat64("TOLERANCE_PCT", c.TolerancePct)
	c.MaxCandidates = ec.MayInt("MAX_CANDIDATES", c.MaxCandidates)

	c.RetentionEmailDays = ec.MayInt("RETENTION_EMAIL_DAYS", c.RetentionEmailDays)
	c.RetentionAuditDays = ec.MayInt("RETENTION_AUDIT_DAYS", c.RetentionAuditDays)
	c.MetricsWindow = ec.MayInt("METRICS_WINDOW", c.MetricsWindow)
	return c
}

// Interval returns the cycle interval as a duration
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate enforces field ranges, weight sum and threshold ordering
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return perr.Wrap(err, perr.ErrorCodeValidation, "engine config")
	}

	sum := scorer.Weights(c.Weights).Sum()
	if sum < 0.95 || sum > 1.05 {
		return perr.Validationf("rule weights sum to %.3f, want [0.95, 1.05]", sum)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeValidation, "engine config")
	}
	return nil
}
