// Package inmemory provides process-local implementations of the memory
// interfaces.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KamdynS/agentlab/memory"
)

type Store struct {
	mu   sync.RWMutex
	data map[string]any
}

func NewStore() *Store {
	return &Store{data: make(map[string]any)}
}

func (s *Store) Store(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Store) Retrieve(ctx context.Context, key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("key %s: %w", key, memory.ErrNotFound)
	}
	return value, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]any)
	return nil
}

// ConversationStore keeps sessions in a map alongside a plain key/value
// space. Window bounds how many messages GetMessages returns.
type ConversationStore struct {
	kv *Store

	mu       sync.RWMutex
	sessions map[string][]memory.Message
	window   int
	now      func() time.Time
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		kv:       NewStore(),
		sessions: make(map[string][]memory.Message),
		now:      time.Now,
	}
}

// Window limits GetMessages to the last n messages. Zero means no limit.
func (cs *ConversationStore) Window(n int) *ConversationStore {
	cs.mu.Lock()
	cs.window = n
	cs.mu.Unlock()
	return cs
}

func (cs *ConversationStore) AppendMessage(ctx context.Context, sessionID string, role, content string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.sessions[sessionID] = append(cs.sessions[sessionID], memory.Message{
		Role:      role,
		Content:   content,
		Timestamp: cs.now().Unix(),
	})
	return nil
}

func (cs *ConversationStore) GetMessages(ctx context.Context, sessionID string) ([]memory.Message, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	msgs := cs.sessions[sessionID]
	if cs.window > 0 && len(msgs) > cs.window {
		msgs = msgs[len(msgs)-cs.window:]
	}
	return append([]memory.Message{}, msgs...), nil
}

func (cs *ConversationStore) ClearSession(ctx context.Context, sessionID string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.sessions, sessionID)
	return nil
}

// Clear drops both sessions and stored keys.
func (cs *ConversationStore) Clear(ctx context.Context) error {
	cs.mu.Lock()
	cs.sessions = make(map[string][]memory.Message)
	cs.mu.Unlock()
	return cs.kv.Clear(ctx)
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

var (
	_ memory.Store             = (*Store)(nil)
	_ memory.ConversationStore = (*ConversationStore)(nil)
)
