package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/perk/id"
	"github.com/xraph/perk/quota"
	"github.com/xraph/perk/referral"
	"github.com/xraph/perk/types"
)

// DefaultTimeout bounds every hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so emitting never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onProGranted       []OnProGranted
	onProExtended      []OnProExtended
	onProRevoked       []OnProRevoked
	onQuotaExceeded    []OnQuotaExceeded
	onRateLimited      []OnRateLimited
	onReferralLinked   []OnReferralLinked
	onReferralRewarded []OnReferralRewarded
	onPurchase         []OnPurchase
	onUserErased       []OnUserErased
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnProGranted); ok {
		r.onProGranted = append(r.onProGranted, v)
	}
	if v, ok := p.(OnProExtended); ok {
		r.onProExtended = append(r.onProExtended, v)
	}
	if v, ok := p.(OnProRevoked); ok {
		r.onProRevoked = append(r.onProRevoked, v)
	}
	if v, ok := p.(OnQuotaExceeded); ok {
		r.onQuotaExceeded = append(r.onQuotaExceeded, v)
	}
	if v, ok := p.(OnRateLimited); ok {
		r.onRateLimited = append(r.onRateLimited, v)
	}
	if v, ok := p.(OnReferralLinked); ok {
		r.onReferralLinked = append(r.onReferralLinked, v)
	}
	if v, ok := p.(OnReferralRewarded); ok {
		r.onReferralRewarded = append(r.onReferralRewarded, v)
	}
	if v, ok := p.(OnPurchase); ok {
		r.onPurchase = append(r.onPurchase, v)
	}
	if v, ok := p.(OnUserErased); ok {
		r.onUserErased = append(r.onUserErased, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", Interfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnProGranted", reflect.TypeOf((*OnProGranted)(nil)).Elem()},
	{"OnProExtended", reflect.TypeOf((*OnProExtended)(nil)).Elem()},
	{"OnProRevoked", reflect.TypeOf((*OnProRevoked)(nil)).Elem()},
	{"OnQuotaExceeded", reflect.TypeOf((*OnQuotaExceeded)(nil)).Elem()},
	{"OnRateLimited", reflect.TypeOf((*OnRateLimited)(nil)).Elem()},
	{"OnReferralLinked", reflect.TypeOf((*OnReferralLinked)(nil)).Elem()},
	{"OnReferralRewarded", reflect.TypeOf((*OnReferralRewarded)(nil)).Elem()},
	{"OnPurchase", reflect.TypeOf((*OnPurchase)(nil)).Elem()},
	{"OnUserErased", reflect.TypeOf((*OnUserErased)(nil)).Elem()},
}

// Interfaces returns the names of the hooks p implements.
func Interfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit calls fn for every hook under the registry timeout. Failures are
// logged and never returned.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, hooks func(*Registry) []T, fn func(T) error) {
	r.mu.RLock()
	plugins := hooks(r)
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	emit(ctx, r, "OnInit", func(r *Registry) []OnInit { return r.onInit },
		func(p OnInit) error { return p.OnInit(ctx, engine) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", func(r *Registry) []OnShutdown { return r.onShutdown },
		func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitProGranted emits a Pro granted event.
func (r *Registry) EmitProGranted(ctx context.Context, user types.UserID, days int) {
	emit(ctx, r, "OnProGranted", func(r *Registry) []OnProGranted { return r.onProGranted },
		func(p OnProGranted) error { return p.OnProGranted(ctx, user, days) })
}

// EmitProExtended emits a Pro extended event.
func (r *Registry) EmitProExtended(ctx context.Context, user types.UserID, days int, remaining time.Duration) {
	emit(ctx, r, "OnProExtended", func(r *Registry) []OnProExtended { return r.onProExtended },
		func(p OnProExtended) error { return p.OnProExtended(ctx, user, days, remaining) })
}

// EmitProRevoked emits a Pro revoked event.
func (r *Registry) EmitProRevoked(ctx context.Context, user types.UserID) {
	emit(ctx, r, "OnProRevoked", func(r *Registry) []OnProRevoked { return r.onProRevoked },
		func(p OnProRevoked) error { return p.OnProRevoked(ctx, user) })
}

// EmitQuotaExceeded emits a quota exceeded event.
func (r *Registry) EmitQuotaExceeded(ctx context.Context, user types.UserID, kind quota.Kind, used, limit int64) {
	emit(ctx, r, "OnQuotaExceeded", func(r *Registry) []OnQuotaExceeded { return r.onQuotaExceeded },
		func(p OnQuotaExceeded) error { return p.OnQuotaExceeded(ctx, user, kind, used, limit) })
}

// EmitRateLimited emits a rate limited event.
func (r *Registry) EmitRateLimited(ctx context.Context, user types.UserID) {
	emit(ctx, r, "OnRateLimited", func(r *Registry) []OnRateLimited { return r.onRateLimited },
		func(p OnRateLimited) error { return p.OnRateLimited(ctx, user) })
}

// EmitReferralLinked emits a referral linked event.
func (r *Registry) EmitReferralLinked(ctx context.Context, user, referrer types.UserID) {
	emit(ctx, r, "OnReferralLinked", func(r *Registry) []OnReferralLinked { return r.onReferralLinked },
		func(p OnReferralLinked) error { return p.OnReferralLinked(ctx, user, referrer) })
}

// EmitReferralRewarded emits a referral rewarded event.
func (r *Registry) EmitReferralRewarded(ctx context.Context, reward *referral.Reward) {
	emit(ctx, r, "OnReferralRewarded", func(r *Registry) []OnReferralRewarded { return r.onReferralRewarded },
		func(p OnReferralRewarded) error { return p.OnReferralRewarded(ctx, reward) })
}

// EmitPurchase emits a purchase event.
func (r *Registry) EmitPurchase(ctx context.Context, purchaseID id.PurchaseID, buyer types.UserID, days int) {
	emit(ctx, r, "OnPurchase", func(r *Registry) []OnPurchase { return r.onPurchase },
		func(p OnPurchase) error { return p.OnPurchase(ctx, purchaseID, buyer, days) })
}

// EmitUserErased emits a user erased event.
func (r *Registry) EmitUserErased(ctx context.Context, user types.UserID, removed int64) {
	emit(ctx, r, "OnUserErased", func(r *Registry) []OnUserErased { return r.onUserErased },
		func(p OnUserErased) error { return p.OnUserErased(ctx, user, removed) })
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block an admission.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
