package projection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vyakaran/platform/internal/guard"
)

// ErrMiss is returned when a key is absent, expired or the backend is skipped.
var ErrMiss = errors.New("projection: key not found")

// Store is the interface for projection persistence.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// SetVersioned writes value under key unless a newer version is stored.
	// A nil value is a fence: it hides the key from reads and rejects any
	// later write older than version. It reports whether the write landed.
	SetVersioned(ctx context.Context, key string, version int64, value []byte, ttl time.Duration) (bool, error)
}

// Versioned entries are stored as "<version>:<value>"; a fence has no value.
func encodeVersioned(version int64, value []byte) []byte {
	out := strconv.AppendInt(nil, version, 10)
	out = append(out, ':')
	return append(out, value...)
}

func decodeVersioned(raw []byte) (int64, []byte, error) {
	i := bytes.IndexByte(raw, ':')
	if i < 0 {
		return 0, nil, fmt.Errorf("malformed versioned entry")
	}
	v, err := strconv.ParseInt(string(raw[:i]), 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("malformed entry version: %w", err)
	}
	return v, raw[i+1:], nil
}

// supersedes reports whether an incoming write may replace the current entry:
// a newer version always wins, and a snapshot may fill its own version's fence.
func supersedes(current []byte, version int64, value []byte) bool {
	curVersion, curValue, err := decodeVersioned(current)
	if err != nil {
		return true
	}
	if version != curVersion {
		return version > curVersion
	}
	return len(value) > 0 && len(curValue) == 0
}

// InMemoryStore is a simple in-memory projection store for development/testing.
type InMemoryStore struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// NewInMemoryStore creates a new in-memory projection store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]entry), now: time.Now}
}

func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok {
		return nil, ErrMiss
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		delete(s.data, key)
		return nil, ErrMiss
	}
	return e.value, nil
}

func (s *InMemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.data[key] = entry{value: value, expiresAt: exp}
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *InMemoryStore) SetVersioned(_ context.Context, key string, version int64, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.data[key]; ok && (e.expiresAt.IsZero() || !now.After(e.expiresAt)) {
		if !supersedes(e.value, version, value) {
			return false, nil
		}
	}
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	s.data[key] = entry{value: encodeVersioned(version, value), expiresAt: exp}
	return true, nil
}

// setVersionedScript mirrors supersedes atomically on the server.
var setVersionedScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local sep = string.find(cur, ':', 1, true)
	if sep then
		local curVersion = tonumber(string.sub(cur, 1, sep - 1))
		local version = tonumber(ARGV[1])
		if curVersion and version < curVersion then
			return 0
		end
		if curVersion and version == curVersion and (ARGV[2] == '' or sep < string.len(cur)) then
			return 0
		end
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1] .. ':' .. ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1] .. ':' .. ARGV[2])
end
return 1
`)

// RedisStore keeps projections in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) SetVersioned(ctx context.Context, key string, version int64, value []byte, ttl time.Duration) (bool, error) {
	n, err := setVersionedScript.Run(ctx, s.client, []string{key},
		version, value, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis versioned set %s: %w", key, err)
	}
	return n == 1, nil
}

// GuardedStore skips the backend while its circuit is open, so a Redis
// outage degrades reads to the database instead of slowing every request.
type GuardedStore struct {
	inner   Store
	breaker *guard.CircuitBreaker
	name    string
}

// NewGuardedStore wraps inner with a circuit breaker keyed by name.
func NewGuardedStore(inner Store, breaker *guard.CircuitBreaker, name string) *GuardedStore {
	return &GuardedStore{inner: inner, breaker: breaker, name: name}
}

func (s *GuardedStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.breaker.Check(ctx, s.name).Allowed {
		return nil, ErrMiss
	}
	data, err := s.inner.Get(ctx, key)
	s.record(err)
	return data, err
}

func (s *GuardedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if res := s.breaker.Check(ctx, s.name); !res.Allowed {
		return fmt.Errorf("projection store unavailable: %s", res.Reason)
	}
	err := s.inner.Set(ctx, key, value, ttl)
	s.record(err)
	return err
}

func (s *GuardedStore) Delete(ctx context.Context, keys ...string) error {
	if res := s.breaker.Check(ctx, s.name); !res.Allowed {
		return fmt.Errorf("projection store unavailable: %s", res.Reason)
	}
	err := s.inner.Delete(ctx, keys...)
	s.record(err)
	return err
}

func (s *GuardedStore) SetVersioned(ctx context.Context, key string, version int64, value []byte, ttl time.Duration) (bool, error) {
	if res := s.breaker.Check(ctx, s.name); !res.Allowed {
		return false, fmt.Errorf("projection store unavailable: %s", res.Reason)
	}
	ok, err := s.inner.SetVersioned(ctx, key, version, value, ttl)
	s.record(err)
	return ok, err
}

func (s *GuardedStore) record(err error) {
	if err == nil || errors.Is(err, ErrMiss) {
		s.breaker.RecordSuccess(s.name)
		return
	}
	s.breaker.RecordFailure(s.name)
}

// SetJSON is a convenience helper to serialize and store a value.
func SetJSON(ctx context.Context, store Store, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal projection: %w", err)
	}
	return store.Set(ctx, key, data, ttl)
}

// GetJSON is a convenience helper to retrieve and deserialize a value.
func GetJSON(ctx context.Context, store Store, key string, dest interface{}) error {
	data, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
