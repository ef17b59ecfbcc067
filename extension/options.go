package extension

import (
	"time"

	"github.com/xraph/perk"
	"github.com/xraph/perk/plugin"
	"github.com/xraph/perk/store"
)

// Option configures the Perk Forge extension.
type Option func(*Extension)

// WithStore sets the store for the perk engine, bypassing backend selection.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithPerkOption passes a perk.Option through to the underlying engine.
func WithPerkOption(opt perk.Option) Option {
	return func(e *Extension) {
		e.perkOpts = append(e.perkOpts, opt)
	}
}

// WithPlugin registers a perk plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.perkOpts = append(e.perkOpts, perk.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithRedis selects the Redis store.
func WithRedis(url, token string) Option {
	return func(e *Extension) {
		e.config.RedisURL = url
		e.config.RedisToken = token
	}
}

// WithMongo selects the MongoDB store.
func WithMongo(uri, database string) Option {
	return func(e *Extension) {
		e.config.MongoURI = uri
		e.config.MongoDatabase = database
	}
}

// WithDisableMigrate prevents index creation on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithRetentionDays sets how many days of metrics are kept.
func WithRetentionDays(days int) Option {
	return func(e *Extension) { e.config.RetentionDays = days }
}

// WithFreeLimits sets the daily free uses per kind.
func WithFreeLimits(writing, speaking int64) Option {
	return func(e *Extension) {
		e.config.FreeWritingLimit = writing
		e.config.FreeSpeakingLimit = speaking
	}
}

// WithReferralBonusDays sets the referrer bonus.
func WithReferralBonusDays(days int) Option {
	return func(e *Extension) { e.config.ReferralBonusDays = days }
}

// WithPurchaseDays sets the Pro time granted per purchase.
func WithPurchaseDays(days int) Option {
	return func(e *Extension) { e.config.PurchaseDays = days }
}

// WithRateLimit sets the sliding-window rate limit.
func WithRateLimit(limit int64, window time.Duration) Option {
	return func(e *Extension) {
		e.config.RateLimit = limit
		e.config.RateWindow = window
	}
}
