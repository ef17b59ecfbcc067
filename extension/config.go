package extension

import "time"

// Backend names the store variant a Config selects.
type Backend string

// Store backends.
const (
	BackendRedis  Backend = "redis"
	BackendMongo  Backend = "mongo"
	BackendMemory Backend = "memory"
)

// Config holds the Perk extension configuration.
// Fields can be set programmatically via Option functions, loaded from
// YAML configuration files (under "extensions.perk" or "perk" keys), or
// read from PERK_* environment variables with LoadEnv.
type Config struct {
	// RedisURL is the Redis endpoint, e.g. "rediss://default@host:6379".
	RedisURL string `json:"redis_url" mapstructure:"redis_url" yaml:"redis_url" env:"REDIS_URL"`

	// RedisToken is the Redis credential. It replaces any password in RedisURL.
	// Redis is used only when both RedisURL and RedisToken are set.
	RedisToken string `json:"-" mapstructure:"redis_token" yaml:"redis_token" env:"REDIS_TOKEN"`

	// MongoURI selects the MongoDB store when Redis is not configured.
	MongoURI string `json:"mongo_uri" mapstructure:"mongo_uri" yaml:"mongo_uri" env:"MONGO_URI"`

	// MongoDatabase is the database holding the keyspace (default: "perk").
	MongoDatabase string `json:"mongo_database" mapstructure:"mongo_database" yaml:"mongo_database" env:"MONGO_DATABASE"`

	// DisableMigrate prevents index creation on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate" env:"DISABLE_MIGRATE"`

	// RetentionDays is how long day-bucketed metrics are kept (default: 31).
	// It must cover the longest report window callers request.
	RetentionDays int `json:"retention_days" mapstructure:"retention_days" yaml:"retention_days" env:"RETENTION_DAYS"`

	// FreeWritingLimit is the daily free writing uses for non-Pro users (default: 1).
	FreeWritingLimit int64 `json:"free_writing_limit" mapstructure:"free_writing_limit" yaml:"free_writing_limit" env:"FREE_WRITING_LIMIT"`

	// FreeSpeakingLimit is the daily free speaking uses for non-Pro users (default: 1).
	FreeSpeakingLimit int64 `json:"free_speaking_limit" mapstructure:"free_speaking_limit" yaml:"free_speaking_limit" env:"FREE_SPEAKING_LIMIT"`

	// ReferralBonusDays is credited to a referrer on the buyer's first purchase (default: 7).
	ReferralBonusDays int `json:"referral_bonus_days" mapstructure:"referral_bonus_days" yaml:"referral_bonus_days" env:"REFERRAL_BONUS_DAYS"`

	// PurchaseDays is the Pro time granted by a purchase (default: 30).
	PurchaseDays int `json:"purchase_days" mapstructure:"purchase_days" yaml:"purchase_days" env:"PURCHASE_DAYS"`

	// RateLimit is the requests allowed per RateWindow per user (default: 10).
	RateLimit int64 `json:"rate_limit" mapstructure:"rate_limit" yaml:"rate_limit" env:"RATE_LIMIT"`

	// RateWindow is the sliding rate-limit window (default: 60s).
	RateWindow time.Duration `json:"rate_window" mapstructure:"rate_window" yaml:"rate_window" env:"RATE_WINDOW"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MongoDatabase:     "perk",
		RetentionDays:     31,
		FreeWritingLimit:  1,
		FreeSpeakingLimit: 1,
		ReferralBonusDays: 7,
		PurchaseDays:      30,
		RateLimit:         10,
		RateWindow:        60 * time.Second,
	}
}

// Backend reports which store variant the config selects: Redis when both
// URL and token are set, MongoDB when a URI is set, memory otherwise.
func (c Config) Backend() Backend {
	switch {
	case c.RedisURL != "" && c.RedisToken != "":
		return BackendRedis
	case c.MongoURI != "":
		return BackendMongo
	default:
		return BackendMemory
	}
}

// WithDefaults fills zero-valued fields with defaults.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()
	if c.MongoDatabase == "" {
		c.MongoDatabase = defaults.MongoDatabase
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = defaults.RetentionDays
	}
	if c.FreeWritingLimit == 0 {
		c.FreeWritingLimit = defaults.FreeWritingLimit
	}
	if c.FreeSpeakingLimit == 0 {
		c.FreeSpeakingLimit = defaults.FreeSpeakingLimit
	}
	if c.ReferralBonusDays == 0 {
		c.ReferralBonusDays = defaults.ReferralBonusDays
	}
	if c.PurchaseDays == 0 {
		c.PurchaseDays = defaults.PurchaseDays
	}
	if c.RateLimit == 0 {
		c.RateLimit = defaults.RateLimit
	}
	if c.RateWindow == 0 {
		c.RateWindow = defaults.RateWindow
	}
	return c
}

// Merge overlays programmatic settings on a file-loaded config. File values
// take precedence; programmatic values fill gaps; defaults fill the rest.
func (c Config) Merge(programmatic Config) Config {
	if programmatic.DisableMigrate {
		c.DisableMigrate = true
	}

	if c.RedisURL == "" {
		c.RedisURL = programmatic.RedisURL
	}
	if c.RedisToken == "" {
		c.RedisToken = programmatic.RedisToken
	}
	if c.MongoURI == "" {
		c.MongoURI = programmatic.MongoURI
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = programmatic.MongoDatabase
	}

	if c.RetentionDays == 0 {
		c.RetentionDays = programmatic.RetentionDays
	}
	if c.FreeWritingLimit == 0 {
		c.FreeWritingLimit = programmatic.FreeWritingLimit
	}
	if c.FreeSpeakingLimit == 0 {
		c.FreeSpeakingLimit = programmatic.FreeSpeakingLimit
	}
	if c.ReferralBonusDays == 0 {
		c.ReferralBonusDays = programmatic.ReferralBonusDays
	}
	if c.PurchaseDays == 0 {
		c.PurchaseDays = programmatic.PurchaseDays
	}
	if c.RateLimit == 0 {
		c.RateLimit = programmatic.RateLimit
	}
	if c.RateWindow == 0 {
		c.RateWindow = programmatic.RateWindow
	}

	return c.WithDefaults()
}
