// Package ledger is the atomic key-value substrate operations run against.
//
// Writes made inside Update are staged and become visible to later reads in the
// same transaction. They are committed together iff the callback returns nil.
package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// ErrConflict reports that another writer committed between our reads and our commit.
var ErrConflict = errors.New("ledger: concurrent update")

// KV is one entry of a prefix scan.
type KV struct {
	Key   string
	Value []byte
}

// Reader is read-only access. Prefix results are sorted by key.
type Reader interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Prefix(ctx context.Context, prefix string) ([]KV, error)
}

// Tx stages writes on top of a Reader.
type Tx interface {
	Reader
	Set(key string, value []byte)
	Delete(key string)
}

// Store commits transactions atomically.
type Store interface {
	Reader
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// staged is the write set shared by every Store implementation.
type staged struct {
	base   Reader
	writes map[string][]byte
	dels   map[string]struct{}
}

func newStaged(base Reader) *staged {
	return &staged{base: base, writes: map[string][]byte{}, dels: map[string]struct{}{}}
}

func (s *staged) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok := s.writes[key]; ok {
		return append([]byte(nil), v...), true, nil
	}
	if _, ok := s.dels[key]; ok {
		return nil, false, nil
	}
	return s.base.Get(ctx, key)
}

func (s *staged) Prefix(ctx context.Context, prefix string) ([]KV, error) {
	base, err := s.base.Prefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	merged := make(map[string][]byte, len(base))
	for _, kv := range base {
		if _, gone := s.dels[kv.Key]; gone {
			continue
		}
		merged[kv.Key] = kv.Value
	}
	for k, v := range s.writes {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	return sortedKVs(merged), nil
}

func (s *staged) Set(key string, value []byte) {
	delete(s.dels, key)
	s.writes[key] = append([]byte(nil), value...)
}

func (s *staged) Delete(key string) {
	delete(s.writes, key)
	s.dels[key] = struct{}{}
}

func (s *staged) empty() bool { return len(s.writes) == 0 && len(s.dels) == 0 }

func sortedKVs(m map[string][]byte) []KV {
	out := make([]KV, 0, len(m))
	for k, v := range m {
		out = append(out, KV{Key: k, Value: append([]byte(nil), v...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
