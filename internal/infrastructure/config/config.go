package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config carries every statutory constant the engine depends on. Fee
// brackets, base damages and thresholds are jurisdiction-specific law and
// business policy; they drift, so nothing here is baked into logic.
type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Scheduler   SchedulerConfig   `koanf:"scheduler"`
	Cooldown    CooldownConfig    `koanf:"cooldown"`
	Detection   DetectionConfig   `koanf:"detection"`
	Fees        FeesConfig        `koanf:"fees"`
	Risk        RiskConfig        `koanf:"risk"`
	Negotiation NegotiationConfig `koanf:"negotiation"`
	MassTrigger MassTriggerConfig `koanf:"mass_trigger"`

	Redis    RedisConfig    `koanf:"redis"`
	Database DatabaseConfig `koanf:"database"`
}

type SchedulerConfig struct {
	TickInterval   time.Duration `koanf:"tick_interval"`
	RequestTimeout time.Duration `koanf:"request_timeout"`

	ReminderDay  int `koanf:"reminder_day"`
	DeadlineDay  int `koanf:"deadline_day"`
	RegulatorDay int `koanf:"regulator_day"`
	LegalDay     int `koanf:"legal_day"`
	MassDay      int `koanf:"mass_day"`

	// Damage attached to the automatic Article 12(3) deadline violation.
	DelayedResponseDamage float64 `koanf:"delayed_response_damage"`
	// Claim amount used when legal proceedings are initiated at day 45.
	LegalClaimAmount float64 `koanf:"legal_claim_amount"`

	NotificationsPerSecond float64 `koanf:"notifications_per_second"`
}

type CooldownConfig struct {
	// Minimum interval between requests to the same creditor by the same user.
	MinInterval time.Duration `koanf:"min_interval"`
}

type DetectionConfig struct {
	// Base damage per severity in NOK, multiplied by capped match count.
	BaseDamages map[string]float64 `koanf:"base_damages"`

	IncompleteThreshold   float64 `koanf:"incomplete_threshold"`
	HighSeverityThreshold float64 `koanf:"high_severity_threshold"`
	NoDataMaxLength       int     `koanf:"no_data_max_length"`
}

// FeeBracket is one row of the Inkassoloven § 14 ceiling table. An upper
// bound of zero means the bracket is unbounded.
type FeeBracket struct {
	Label      string  `koanf:"label"`
	UpperBound float64 `koanf:"upper_bound"`
	Fee        float64 `koanf:"fee"`
	VAT        float64 `koanf:"vat"`
}

type FeesConfig struct {
	Brackets []FeeBracket `koanf:"brackets"`
	// Excess above this amount lifts the fee violation from medium to high.
	HighSeverityExcess float64 `koanf:"high_severity_excess"`
}

type RiskConfig struct {
	TypeMultipliers map[string]float64 `koanf:"type_multipliers"`
}

type NegotiationConfig struct {
	MaxRounds              int     `koanf:"max_rounds"`
	EscalateAfterRound     int     `koanf:"escalate_after_round"`
	ConcessionRate         float64 `koanf:"concession_rate"`
	MinConcession          float64 `koanf:"min_concession"`
	AutoAcceptTolerance    float64 `koanf:"auto_accept_tolerance"`
	DeadlineDays           int     `koanf:"deadline_days"`
	FinalOfferDeadlineDays int     `koanf:"final_offer_deadline_days"`
	PlatformFeeRate        float64 `koanf:"platform_fee_rate"`
}

type MassTriggerConfig struct {
	RecentWindowDays  int `koanf:"recent_window_days"`
	CriticalRecent    int `koanf:"critical_recent"`
	CriticalTotal     int `koanf:"critical_total"`
	HighRecent        int `koanf:"high_recent"`
	HighTotal         int `koanf:"high_total"`
	ClusterCount      int `koanf:"cluster_count"`
	ClusterWindowDays int `koanf:"cluster_window_days"`
	SameTypeCount     int `koanf:"same_type_count"`
	LegacyTotal       int `koanf:"legacy_total"`
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// Load reads defaults, an optional configs/config.yaml, and DAMOCLES_*
// environment overrides, in that order.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional.
	_ = k.Load(file.Provider("configs/config.yaml"), yaml.Parser())

	if err := k.Load(env.Provider("DAMOCLES_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "DAMOCLES_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns the 2024 statutory tables and engine policy defaults.
func Defaults() *Config {
	return &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Scheduler: SchedulerConfig{
			TickInterval:           time.Hour,
			RequestTimeout:         10 * time.Second,
			ReminderDay:            25,
			DeadlineDay:            30,
			RegulatorDay:           35,
			LegalDay:               45,
			MassDay:                60,
			DelayedResponseDamage:  150,
			LegalClaimAmount:       25000,
			NotificationsPerSecond: 5,
		},
		Cooldown: CooldownConfig{
			MinInterval: 168 * time.Hour,
		},
		Detection: DetectionConfig{
			BaseDamages: map[string]float64{
				"critical": 500,
				"high":     250,
				"medium":   100,
				"low":      50,
			},
			IncompleteThreshold:   0.4,
			HighSeverityThreshold: 0.2,
			NoDataMaxLength:       300,
		},
		Fees: FeesConfig{
			// Inkassoloven § 14 maximum fees, 2024 rates.
			Brackets: []FeeBracket{
				{Label: "claim_under_2500", UpperBound: 2500, Fee: 142, VAT: 35.50},
				{Label: "claim_2500_to_5000", UpperBound: 5000, Fee: 213, VAT: 53.25},
				{Label: "claim_5000_to_10000", UpperBound: 10000, Fee: 284, VAT: 71.00},
				{Label: "claim_over_10000", UpperBound: 0, Fee: 355, VAT: 88.75},
			},
			HighSeverityExcess: 500,
		},
		Risk: RiskConfig{
			TypeMultipliers: map[string]float64{
				"debt_collector": 1.5,
				"bank":           1.3,
				"telecom":        1.2,
				"utility":        1.1,
				"other":          1.0,
			},
		},
		Negotiation: NegotiationConfig{
			MaxRounds:              5,
			EscalateAfterRound:     3,
			ConcessionRate:         0.15,
			MinConcession:          50,
			AutoAcceptTolerance:    0.05,
			DeadlineDays:           14,
			FinalOfferDeadlineDays: 3,
			PlatformFeeRate:        0.20,
		},
		MassTrigger: MassTriggerConfig{
			RecentWindowDays:  30,
			CriticalRecent:    5,
			CriticalTotal:     10,
			HighRecent:        15,
			HighTotal:         30,
			ClusterCount:      20,
			ClusterWindowDays: 7,
			SameTypeCount:     10,
			LegacyTotal:       100,
		},
		Redis: RedisConfig{
			URL: "localhost:6379",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}
}
