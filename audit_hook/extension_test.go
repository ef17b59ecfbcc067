package audithook_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	audithook "github.com/xraph/perk/audit_hook"
	"github.com/xraph/perk/id"
	"github.com/xraph/perk/plugin"
	"github.com/xraph/perk/referral"
)

type sink struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (s *sink) Record(_ context.Context, ev *audithook.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *sink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Action
	}
	return out
}

func TestRecordsEvents(t *testing.T) {
	s := &sink{}
	r := plugin.NewRegistry()
	_ = r.Register(audithook.New(s))

	ctx := context.Background()
	reward := &referral.Reward{ID: id.NewRewardID(), Referrer: 2, Buyer: 1, BonusDays: 7}
	r.EmitProGranted(ctx, 1, 30)
	r.EmitReferralRewarded(ctx, reward)
	r.EmitUserErased(ctx, 1, 3)

	got := s.actions()
	want := []string{audithook.ActionProGranted, audithook.ActionReferralRewarded, audithook.ActionUserErased}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}

	ev := s.events[1]
	if ev.ResourceID != reward.ID.String() {
		t.Errorf("expected resource id %q, got %q", reward.ID.String(), ev.ResourceID)
	}
	if ev.Metadata["referrer"] != "2" || ev.Metadata["bonus_days"] != 7 {
		t.Errorf("unexpected metadata %v", ev.Metadata)
	}
	if ev.ID.Prefix() != id.PrefixAudit {
		t.Errorf("expected audit id, got %q", ev.ID.String())
	}
}

func TestEnabledActions(t *testing.T) {
	s := &sink{}
	e := audithook.New(s, audithook.WithEnabledActions(audithook.ActionProRevoked))
	ctx := context.Background()

	_ = e.OnProGranted(ctx, 1, 30)
	_ = e.OnProRevoked(ctx, 1)

	if got := s.actions(); len(got) != 1 || got[0] != audithook.ActionProRevoked {
		t.Errorf("expected only revocation, got %v", got)
	}
}

func TestDisabledActions(t *testing.T) {
	s := &sink{}
	e := audithook.New(s, audithook.WithDisabledActions(audithook.ActionRateLimited))
	ctx := context.Background()

	_ = e.OnRateLimited(ctx, 1)
	_ = e.OnReferralLinked(ctx, 1, 2)

	if got := s.actions(); len(got) != 1 || got[0] != audithook.ActionReferralLinked {
		t.Errorf("expected only referral link, got %v", got)
	}
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	e := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))
	if err := e.OnProRevoked(context.Background(), 1); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}
