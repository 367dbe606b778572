// Package redis implements the memory stores on go-redis. Values are JSON
// encoded; conversations are Redis lists so appends are O(1).
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KamdynS/agentlab/memory"
	rds "github.com/redis/go-redis/v9"
)

// Store is a key/value store with an optional TTL applied on every write.
type Store struct {
	client *rds.Client
	ttl    time.Duration
	prefix string
}

func NewStore(client *rds.Client, ttl time.Duration, prefix string) *Store {
	return &Store{client: client, ttl: ttl, prefix: prefix}
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *Store) Store(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.client.Set(ctx, s.key(key), b, s.ttl).Err()
}

func (s *Store) Retrieve(ctx context.Context, key string) (any, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, rds.Nil) {
			return nil, fmt.Errorf("key %s: %w", key, memory.ErrNotFound)
		}
		return nil, err
	}
	var out any
	if err := json.Unmarshal(val, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// List returns keys without the store prefix.
func (s *Store) List(ctx context.Context) ([]string, error) {
	raw, err := scan(ctx, s.client, s.key("*"))
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(raw))
	for i, k := range raw {
		keys[i] = strings.TrimPrefix(k, s.key(""))
	}
	return keys, nil
}

func (s *Store) Clear(ctx context.Context) error {
	raw, err := scan(ctx, s.client, s.key("*"))
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	return s.client.Del(ctx, raw...).Err()
}

func scan(ctx context.Context, client *rds.Client, pattern string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		ks, cur, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, ks...)
		if cur == 0 {
			return keys, nil
		}
		cursor = cur
	}
}

// ConversationStore keeps each session in a list under
// "<prefix>:conversation:<id>" and plain values under "<prefix>:kv:".
type ConversationStore struct {
	kv     *Store
	client *rds.Client
	prefix string
	ttl    time.Duration
}

func NewConversationStore(client *rds.Client, prefix string, ttl time.Duration) *ConversationStore {
	kvPrefix := "kv"
	if prefix != "" {
		kvPrefix = prefix + ":kv"
	}
	return &ConversationStore{
		kv:     NewStore(client, ttl, kvPrefix),
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (cs *ConversationStore) convKey(sessionID string) string {
	p := cs.prefix
	if p != "" {
		p += ":"
	}
	return p + "conversation:" + sessionID
}

func (cs *ConversationStore) Store(ctx context.Context, key string, value any) error {
	return cs.kv.Store(ctx, key, value)
}

func (cs *ConversationStore) Retrieve(ctx context.Context, key string) (any, error) {
	return cs.kv.Retrieve(ctx, key)
}

func (cs *ConversationStore) Delete(ctx context.Context, key string) error {
	return cs.kv.Delete(ctx, key)
}

func (cs *ConversationStore) List(ctx context.Context) ([]string, error) {
	return cs.kv.List(ctx)
}

// Clear removes stored values and every session.
func (cs *ConversationStore) Clear(ctx context.Context) error {
	if err := cs.kv.Clear(ctx); err != nil {
		return err
	}
	keys, err := scan(ctx, cs.client, cs.convKey("*"))
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return cs.client.Del(ctx, keys...).Err()
}

func (cs *ConversationStore) AppendMessage(ctx context.Context, sessionID string, role, content string) error {
	key := cs.convKey(sessionID)
	b, err := json.Marshal(memory.Message{Role: role, Content: content, Timestamp: time.Now().Unix()})
	if err != nil {
		return err
	}
	pipe := cs.client.TxPipeline()
	pipe.RPush(ctx, key, b)
	if cs.ttl > 0 {
		pipe.Expire(ctx, key, cs.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (cs *ConversationStore) GetMessages(ctx context.Context, sessionID string) ([]memory.Message, error) {
	return cs.Recent(ctx, sessionID, 0)
}

// Recent returns the last n messages of a session, or all when n <= 0.
func (cs *ConversationStore) Recent(ctx context.Context, sessionID string, n int) ([]memory.Message, error) {
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}
	vals, err := cs.client.LRange(ctx, cs.convKey(sessionID), start, -1).Result()
	if err != nil && !errors.Is(err, rds.Nil) {
		return nil, err
	}
	msgs := make([]memory.Message, 0, len(vals))
	for _, v := range vals {
		var m memory.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (cs *ConversationStore) ClearSession(ctx context.Context, sessionID string) error {
	return cs.client.Del(ctx, cs.convKey(sessionID)).Err()
}

var (
	_ memory.Store             = (*Store)(nil)
	_ memory.ConversationStore = (*ConversationStore)(nil)
)
