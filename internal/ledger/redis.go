package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	defaultNamespace = "wager:"
	revisionKey      = "__rev"
	scanBatch        = 256
)

// RedisStore keeps the ledger in Redis. Every commit bumps a revision key under
// WATCH, so a commit racing another writer fails with ErrConflict instead of
// interleaving.
type RedisStore struct {
	rdb *redis.Client
	ns  string
}

// NewRedisStore connects using a redis:// or rediss:// URL and pings the server.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis ledger")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb, ns: defaultNamespace}, nil
}

// Client is the underlying connection, shared with auxiliary users such as the
// HTTP rate limiter. Keys outside the ledger namespace are never read back.
func (s *RedisStore) Client() *redis.Client { return s.rdb }

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return redisReader{c: s.rdb, ns: s.ns}.Get(ctx, key)
}

func (s *RedisStore) Prefix(ctx context.Context, prefix string) ([]KV, error) {
	return redisReader{c: s.rdb, ns: s.ns}.Prefix(ctx, prefix)
}

func (s *RedisStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	revK := s.ns + revisionKey
	err := s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
		st := newStaged(redisReader{c: rtx, ns: s.ns})
		if err := fn(st); err != nil {
			return err
		}
		if st.empty() {
			return nil
		}
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for k := range st.dels {
				pipe.Del(ctx, s.ns+k)
			}
			for k, v := range st.writes {
				pipe.Set(ctx, s.ns+k, v, 0)
			}
			pipe.Incr(ctx, revK)
			return nil
		})
		return err
	}, revK)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

// redisCmds is the subset of commands shared by *redis.Client and *redis.Tx.
type redisCmds interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

type redisReader struct {
	c  redisCmds
	ns string
}

func (r redisReader) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := r.c.Get(ctx, r.ns+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return raw, true, nil
}

func (r redisReader) Prefix(ctx context.Context, prefix string) ([]KV, error) {
	match := escapeGlob(r.ns+prefix) + "*"
	var keys []string
	var cursor uint64
	for {
		batch, next, err := r.c.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %s: %w", prefix, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)
	keys = dedupe(keys)

	vals, err := r.c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget %s: %w", prefix, err)
	}
	out := make([]KV, 0, len(keys))
	for i, k := range keys {
		if k == r.ns+revisionKey {
			continue
		}
		s, ok := vals[i].(string)
		if !ok {
			// deleted between SCAN and MGET
			continue
		}
		out = append(out, KV{Key: strings.TrimPrefix(k, r.ns), Value: []byte(s)})
	}
	return out, nil
}

func dedupe(sorted []string) []string {
	out := make([]string, 0, len(sorted))
	for _, k := range sorted {
		if n := len(out); n > 0 && out[n-1] == k {
			continue
		}
		out = append(out, k)
	}
	return out
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
