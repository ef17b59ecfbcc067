// Package extension provides the Forge extension adapter for Perk.
//
// It implements the forge.Extension interface to integrate Perk
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions,
// via YAML configuration files under "extensions.perk" or "perk" keys,
// or from PERK_* environment variables (see LoadEnv).
package extension

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/perk"
	"github.com/xraph/perk/entitlement"
	"github.com/xraph/perk/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "perk"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Pro entitlements, daily quotas, referrals and usage metrics"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Perk as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config   Config
	engine   *perk.Perk
	store    store.Store
	perkOpts []perk.Option
}

// New creates a new Perk Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Perk instance.
// This is nil until Register is called.
func (e *Extension) Engine() *perk.Perk { return e.engine }

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration,
// opens the configured store, and registers the engine in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := OpenStore(e.config)
		if err != nil {
			return err
		}
		e.store = s
	}
	if IsLocal(e.store) {
		e.Logger().Warn("perk: no remote store configured, using process-local memory store")
	}

	e.engine = perk.New(e.store, BuildOptions(e.config, e.perkOpts...)...)

	return vessel.Provide(fapp.Container(), func() (*perk.Perk, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("perk: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("perk: store not initialized")
	}
	return e.store.Ping(ctx)
}

// BuildOptions constructs perk.Option values from cfg followed by extra.
func BuildOptions(cfg Config, extra ...perk.Option) []perk.Option {
	cfg = cfg.WithDefaults()

	opts := make([]perk.Option, 0, len(extra)+7)
	opts = append(opts,
		perk.WithFreeLimit(perk.KindWriting, cfg.FreeWritingLimit),
		perk.WithFreeLimit(perk.KindSpeaking, cfg.FreeSpeakingLimit),
		perk.WithReferralBonus(cfg.ReferralBonusDays),
		perk.WithPurchaseDays(cfg.PurchaseDays),
		perk.WithRateLimit(cfg.RateLimit, cfg.RateWindow),
		perk.WithRetention(time.Duration(cfg.RetentionDays)*entitlement.Day),
		perk.WithMigrate(!cfg.DisableMigrate),
	)

	// Append any pass-through perk options.
	return append(opts, extra...)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("perk: configuration is required but not found in config files; " +
				"ensure 'extensions.perk' or 'perk' key exists in your config")
		}
		e.config = programmaticConfig.WithDefaults()
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = fileConfig.Merge(programmaticConfig)
	}

	e.Logger().Debug("perk: configuration loaded",
		forge.F("backend", string(e.config.Backend())),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("retention_days", e.config.RetentionDays),
		forge.F("free_writing_limit", e.config.FreeWritingLimit),
		forge.F("free_speaking_limit", e.config.FreeSpeakingLimit),
		forge.F("referral_bonus_days", e.config.ReferralBonusDays),
		forge.F("purchase_days", e.config.PurchaseDays),
		forge.F("rate_limit", e.config.RateLimit),
		forge.F("rate_window", e.config.RateWindow),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.perk", "perk"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("perk: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("perk: loaded config from file",
			forge.F("key", key),
		)
		return cfg, true
	}

	return Config{}, false
}
