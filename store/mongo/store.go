// Package mongo implements store.Store on a single MongoDB collection. Each
// key is one document; expiry is enforced on read and reclaimed by a TTL
// index. It does not implement store.WindowLimiter.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/perk/store"
)

// Collection name constant.
const colKeys = "perk_keys"

// maxAttempts bounds the retries of an upsert that collided with an expired
// or convertible document.
const maxAttempts = 3

// compile-time interface check
var (
	_ store.Store    = (*Store)(nil)
	_ store.Migrator = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithCollection overrides the collection name.
func WithCollection(name string) Option {
	return func(s *Store) { s.colName = name }
}

// Store implements store.Store using the official MongoDB driver.
type Store struct {
	client  *mongo.Client
	col     *mongo.Collection
	colName string
	now     func() time.Time
}

// New creates a store over database db of an already connected client.
func New(client *mongo.Client, db string, opts ...Option) *Store {
	s := &Store{
		client:  client,
		colName: colKeys,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.col = client.Database(db).Collection(s.colName)
	return s
}

// Open connects to uri and returns a store over database db.
func Open(uri, db string, opts ...Option) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("perk/mongo: connect: %w", err)
	}
	return New(client, db, opts...), nil
}

// Client returns the underlying MongoDB client.
func (s *Store) Client() *mongo.Client { return s.client }

// Migrate creates the keyspace indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.col.Indexes().CreateMany(ctx, migrationIndexes()); err != nil {
		return fmt.Errorf("perk/mongo: migrate %s indexes: %w", s.colName, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return classify("ping", s.client.Ping(ctx, nil))
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// clock returns the current time at the millisecond precision of BSON dates.
func (s *Store) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNil
	case errors.Is(err, mongo.ErrClientDisconnected):
		return store.ErrClosed
	}
	return store.Unavailable(op, err)
}

// find loads the live document for key.
func (s *Store) find(ctx context.Context, key string, now time.Time) (*keyModel, error) {
	var m keyModel
	if err := s.col.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&m); err != nil {
		return nil, classify("find", err)
	}
	if !m.live(now) {
		return nil, store.ErrNil
	}
	return &m, nil
}

// upsert applies update to the live document of the given kind, creating it
// when absent. A collision with an expired document purges it and retries;
// a collision with a live document of another kind is passed to onConflict,
// which may convert it and ask for a retry.
func (s *Store) upsert(ctx context.Context, op, key, kind string, update any, after bool, onConflict func(*keyModel) (bool, error)) (*keyModel, error) {
	ret := options.Before
	if after {
		ret = options.After
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(ret)

	for range maxAttempts {
		now := s.clock()
		var m keyModel
		err := s.col.FindOneAndUpdate(ctx, liveFilter(key, kind, now), update, opts).Decode(&m)
		switch {
		case err == nil:
			return &m, nil
		case errors.Is(err, mongo.ErrNoDocuments):
			// Upserted with ReturnDocument Before.
			return nil, nil
		case !mongo.IsDuplicateKeyError(err):
			return nil, classify(op, err)
		}

		existing, ferr := s.find(ctx, key, now)
		if errors.Is(ferr, store.ErrNil) {
			if _, derr := s.col.DeleteOne(ctx, expiredFilter(key, now)); derr != nil {
				return nil, classify(op, derr)
			}
			continue
		}
		if ferr != nil {
			return nil, ferr
		}
		retry, cerr := onConflict(existing)
		if cerr != nil {
			return nil, cerr
		}
		if !retry {
			return nil, store.ErrWrongType
		}
	}
	return nil, store.Unavailable(op, fmt.Errorf("key %q kept changing", key))
}

func wrongType(*keyModel) (bool, error) { return false, store.ErrWrongType }

// ==================== Strings and counters ====================

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	m, err := s.find(ctx, key, s.clock())
	if err != nil {
		return "", err
	}
	return m.stringValue()
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m := keyModel{Key: key, Kind: kindString, Str: value}
	if ttl > 0 {
		exp := s.clock().Add(ttl)
		m.ExpiresAt = &exp
	}
	_, err := s.col.ReplaceOne(ctx, bson.D{{Key: "_id", Value: key}}, m, options.Replace().SetUpsert(true))
	return classify("set", err)
}

func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	now := s.clock()
	if _, err := s.col.DeleteOne(ctx, expiredFilter(key, now)); err != nil {
		return false, classify("setnx", err)
	}

	m := keyModel{Key: key, Kind: kindString, Str: value}
	if ttl > 0 {
		exp := now.Add(ttl)
		m.ExpiresAt = &exp
	}
	if _, err := s.col.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, classify("setnx", err)
	}
	return true, nil
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	now := s.clock()
	live := bson.D{
		{Key: "_id", Value: bson.D{{Key: "$in", Value: keys}}},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "expires_at", Value: nil}},
			bson.D{{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: now}}}},
		}},
	}
	res, err := s.col.DeleteMany(ctx, live)
	if err != nil {
		return 0, classify("del", err)
	}
	// Expired leftovers are not counted but go too.
	if _, err := s.col.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: keys}}}}); err != nil {
		return res.DeletedCount, classify("del", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "num", Value: n}}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "kind", Value: kindCounter}}},
	}
	m, err := s.upsert(ctx, "incrby", key, kindCounter, update, true, func(m *keyModel) (bool, error) {
		if m.Kind != kindString {
			return false, store.ErrWrongType
		}
		cur, perr := strconv.ParseInt(m.Str, 10, 64)
		if perr != nil {
			return false, store.ErrNotInteger
		}
		// Convert the string in place, only if nobody changed it meanwhile.
		_, uerr := s.col.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: key}, {Key: "kind", Value: kindString}, {Key: "str", Value: m.Str}},
			bson.D{
				{Key: "$set", Value: bson.D{{Key: "kind", Value: kindCounter}, {Key: "num", Value: cur}}},
				{Key: "$unset", Value: bson.D{{Key: "str", Value: ""}}},
			})
		return uerr == nil, classify("incrby", uerr)
	})
	if err != nil {
		return 0, err
	}
	return m.Num, nil
}

// ==================== Expiry ====================

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		n, err := s.Del(ctx, key)
		return n > 0, err
	}
	now := s.clock()
	res, err := s.col.UpdateOne(ctx, liveFilter(key, "", now),
		bson.D{{Key: "$set", Value: bson.D{{Key: "expires_at", Value: now.Add(ttl)}}}})
	if err != nil {
		return false, classify("expire", err)
	}
	return res.MatchedCount > 0, nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	now := s.clock()
	m, err := s.find(ctx, key, now)
	if err != nil {
		return 0, err
	}
	if m.ExpiresAt == nil {
		return store.NoExpiry, nil
	}
	return m.ExpiresAt.Sub(now), nil
}

// Extend runs as a single pipeline update: the remaining lifetime is read
// and pushed forward inside one document write.
func (s *Store) Extend(ctx context.Context, key, value string, add time.Duration) (time.Duration, error) {
	now := s.clock()
	remaining := bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$gt", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$expires_at", now}}}, now}}},
		bson.D{{Key: "$subtract", Value: bson.A{"$expires_at", now}}},
		0,
	}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "kind", Value: kindString},
			{Key: "str", Value: value},
			{Key: "expires_at", Value: bson.D{{Key: "$add", Value: bson.A{now, remaining, add.Milliseconds()}}}},
		}}},
		{{Key: "$unset", Value: bson.A{"num", "members", "scores"}}},
	}

	var m keyModel
	err := s.col.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: key}}, pipeline,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)).Decode(&m)
	if err != nil {
		return 0, classify("extend", err)
	}

	ttl := m.ExpiresAt.Sub(now)
	if ttl <= 0 {
		_, err := s.col.DeleteOne(ctx, expiredFilter(key, now))
		return 0, classify("extend", err)
	}
	return ttl, nil
}

// ==================== Sets ====================

func (s *Store) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	update := bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: "members", Value: bson.D{{Key: "$each", Value: members}}}}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "kind", Value: kindSet}}},
	}
	before, err := s.upsert(ctx, "sadd", key, kindSet, update, false, wrongType)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{})
	if before != nil {
		for _, m := range before.Members {
			seen[m] = struct{}{}
		}
	}
	var added int64
	for _, m := range members {
		if _, ok := seen[m]; !ok {
			seen[m] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	m, err := s.find(ctx, key, s.clock())
	if errors.Is(err, store.ErrNil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if m.Kind != kindSet {
		return 0, store.ErrWrongType
	}
	return int64(len(m.Members)), nil
}

// ==================== Sorted sets ====================

func (s *Store) ZIncrBy(ctx context.Context, key, member string, incr float64) (float64, error) {
	field := scoreField(member)
	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "scores." + field, Value: incr}}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "kind", Value: kindZSet}}},
	}
	m, err := s.upsert(ctx, "zincrby", key, kindZSet, update, true, wrongType)
	if err != nil {
		return 0, err
	}
	return m.Scores[field], nil
}

func (s *Store) ZTop(ctx context.Context, key string, n int) ([]store.ScoredMember, error) {
	all, err := s.ZAll(ctx, key)
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (s *Store) ZAll(ctx context.Context, key string) ([]store.ScoredMember, error) {
	m, err := s.find(ctx, key, s.clock())
	if errors.Is(err, store.ErrNil) {
		return []store.ScoredMember{}, nil
	}
	if err != nil {
		return nil, err
	}
	if m.Kind != kindZSet {
		return nil, store.ErrWrongType
	}
	return m.ranked(), nil
}

func (s *Store) ZScore(ctx context.Context, key, member string) (float64, error) {
	m, err := s.find(ctx, key, s.clock())
	if err != nil {
		return 0, err
	}
	if m.Kind != kindZSet {
		return 0, store.ErrWrongType
	}
	score, ok := m.Scores[scoreField(member)]
	if !ok {
		return 0, store.ErrNil
	}
	return score, nil
}
