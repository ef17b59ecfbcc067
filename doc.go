// Package perk provides Pro entitlements, daily free quotas, referral rewards
// and usage metrics for chat-driven Go applications.
//
// Perk is a library, not a service. Every piece of state lives in a single
// key-value store chosen once at startup, so any number of handler processes
// can share it. It provides:
//
//   - Time-limited Pro entitlements backed by key expiry
//   - Per-user daily free-use quotas that roll over at UTC midnight
//   - Referral links with an exactly-once bonus on the buyer's first purchase
//   - Day-bucketed counters, unique users and referral leaderboards
//   - A sliding-window rate limiter that admits when the store cannot enforce it
//   - Erasure of the keys that identify a user
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/perk"
//	    "github.com/xraph/perk/store/redis"
//	)
//
//	s, err := redis.Open(redisURL, redisToken)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p := perk.New(s)
//	if err := p.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Stop()
//
// # Admission
//
// Each request is admitted through the rate limiter, then the Pro check, then
// the daily quota for non-Pro users:
//
//	adm := p.Admit(ctx, userID, perk.KindWriting)
//	if !adm.Allowed {
//	    // adm.Reason is "rate_limited" or "quota_exhausted"
//	    return
//	}
//	// ... do the work ...
//	p.Complete(ctx, perk.KindWriting)
//
// # Referrals
//
// A deep-link start code that names another user links them as the
// referrer. The first purchase by the referred user extends the referrer's
// Pro time by the referral bonus:
//
//	p.RecordStart(ctx, userID, "12345")
//	res, err := p.HandlePurchase(ctx, perk.PurchaseEvent{BuyerID: userID})
//	if res.Reward != nil {
//	    // notify res.Reward.Referrer
//	}
//
// # Failure model
//
// Store failures never escape as panics. Queries fall back to the
// conservative answer (not Pro, nothing remaining, zero counts) and mutations
// return an error wrapping store.ErrUnavailable. With no remote store
// configured the in-memory store is used for the life of the process.
//
// # TypeID
//
// Purchases, rewards, erasures and audit events carry TypeIDs:
//
//	pur_01h2xcejqtf2nbrexx3vqjhp41  // Purchase ID
//	rwd_01h2xcejqtf2nbrexx3vqjhp41  // Reward ID
//	aud_01h455vb4pex5vsknk084sn02q  // Audit event ID
package perk
