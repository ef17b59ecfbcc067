package mongo

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/perk/store"
)

// Document kinds.
const (
	kindString  = "string"
	kindCounter = "counter"
	kindSet     = "set"
	kindZSet    = "zset"
)

// keyModel is one key of the keyspace. Only the fields of its kind are set.
type keyModel struct {
	Key       string             `bson:"_id"`
	Kind      string             `bson:"kind"`
	Str       string             `bson:"str,omitempty"`
	Num       int64              `bson:"num,omitempty"`
	Members   []string           `bson:"members,omitempty"`
	Scores    map[string]float64 `bson:"scores,omitempty"`
	ExpiresAt *time.Time         `bson:"expires_at,omitempty"`
}

func (m *keyModel) live(now time.Time) bool {
	return m.ExpiresAt == nil || m.ExpiresAt.After(now)
}

func (m *keyModel) stringValue() (string, error) {
	switch m.Kind {
	case kindString:
		return m.Str, nil
	case kindCounter:
		return strconv.FormatInt(m.Num, 10), nil
	default:
		return "", store.ErrWrongType
	}
}

// scoreField maps a sorted-set member onto a field name that is safe in an
// update path regardless of dots or dollar signs in the member.
func scoreField(member string) string {
	return "m" + hex.EncodeToString([]byte(member))
}

func memberOf(field string) (string, bool) {
	raw, err := hex.DecodeString(strings.TrimPrefix(field, "m"))
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// ranked orders members by descending score, ties by descending member.
func (m *keyModel) ranked() []store.ScoredMember {
	out := make([]store.ScoredMember, 0, len(m.Scores))
	for field, sc := range m.Scores {
		member, ok := memberOf(field)
		if !ok {
			continue
		}
		out = append(out, store.ScoredMember{Member: member, Score: sc})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Member > out[j].Member
	})
	return out
}

// liveFilter matches key only while it is unexpired and of the given kind.
func liveFilter(key, kind string, now time.Time) bson.D {
	f := bson.D{{Key: "_id", Value: key}}
	if kind != "" {
		f = append(f, bson.E{Key: "kind", Value: kind})
	}
	return append(f, bson.E{Key: "$or", Value: bson.A{
		bson.D{{Key: "expires_at", Value: nil}},
		bson.D{{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: now}}}},
	}})
}

// expiredFilter matches key only once its expiry has passed.
func expiredFilter(key string, now time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: key},
		{Key: "expires_at", Value: bson.D{{Key: "$lte", Value: now}}},
	}
}

// migrationIndexes returns the index definitions for the keyspace collection.
// The TTL index reclaims expired documents in the background; reads still
// treat them as absent as soon as their expiry passes.
func migrationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{Keys: bson.D{{Key: "kind", Value: 1}}},
	}
}
