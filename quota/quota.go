// Package quota tracks per-user daily usage of free resources. Each
// (kind, user, UTC day) has its own counter key that expires at the next
// UTC midnight, so rollover needs no migration.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/xraph/perk/store"
	"github.com/xraph/perk/types"
)

// Kind is a resource category with its own daily counter.
type Kind string

// Tracked kinds.
const (
	KindWriting  Kind = "writing"
	KindSpeaking Kind = "speaking"
)

// Kinds lists every tracked kind.
func Kinds() []Kind {
	return []Kind{KindWriting, KindSpeaking}
}

// Valid reports whether k is a tracked kind.
func (k Kind) Valid() bool {
	return k == KindWriting || k == KindSpeaking
}

// ParseKind validates s as a tracked kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w %q", ErrInvalidKind, s)
	}
	return k, nil
}

// ErrInvalidKind is returned by ParseKind for an unknown kind.
var ErrInvalidKind = errors.New("quota: unknown kind")

// Key returns the counter key for user's usage of kind on day.
func Key(kind Kind, user types.UserID, day types.Day) string {
	return "quota:" + string(kind) + ":" + user.String() + ":" + day.String()
}

// Decision is the outcome of Take.
type Decision struct {
	Allowed   bool  `json:"allowed"`
	Remaining int64 `json:"remaining"`
	Used      int64 `json:"used"`
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithClock sets the time source used to pick the current UTC day.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker counts daily usage against a limit.
type Tracker struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Tracker over s.
func New(s store.Store, opts ...Option) *Tracker {
	t := &Tracker{store: s, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Today returns the current UTC day.
func (t *Tracker) Today() types.Day {
	return types.DayOf(t.now())
}

// Used returns how many units user consumed of kind today.
func (t *Tracker) Used(ctx context.Context, user types.UserID, kind Kind) (int64, error) {
	v, err := t.store.Get(ctx, Key(kind, user, t.Today()))
	if store.IsNil(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("quota: counter %q: %w", v, store.ErrNotInteger)
	}
	return n, nil
}

// RemainingToday returns max(0, limit-used). A store failure reads as
// nothing remaining.
func (t *Tracker) RemainingToday(ctx context.Context, user types.UserID, kind Kind, limit int64) int64 {
	used, err := t.Used(ctx, user, kind)
	if err != nil {
		t.logger.Warn("quota: read failed", "user_id", user, "kind", kind, "error", err)
		return 0
	}
	return max(0, limit-used)
}

// Take consumes one unit. Counting continues past the limit so usage stays
// accurate; such calls are denied. A store failure is a denial.
func (t *Tracker) Take(ctx context.Context, user types.UserID, kind Kind, limit int64) Decision {
	now := t.now()
	key := Key(kind, user, types.DayOf(now))

	n, err := t.store.IncrBy(ctx, key, 1)
	if err != nil {
		t.logger.Warn("quota: increment failed", "key", key, "error", err)
		return Decision{}
	}
	if n == 1 {
		if _, err := t.store.Expire(ctx, key, types.UntilMidnight(now)); err != nil {
			t.logger.Warn("quota: expire failed", "key", key, "error", err)
		}
	}

	return Decision{
		Allowed:   n <= limit,
		Remaining: max(0, limit-n),
		Used:      n,
	}
}

// TodayKeys returns the counter keys of every kind for user today.
func (t *Tracker) TodayKeys(user types.UserID) []string {
	today := t.Today()
	keys := make([]string, 0, len(Kinds()))
	for _, k := range Kinds() {
		keys = append(keys, Key(k, user, today))
	}
	return keys
}
