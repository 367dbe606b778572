package memory

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultMaxItems bounds a SimpleMemory when no limit is given.
const DefaultMaxItems = 1000

// MemoryItem is one remembered experience.
type MemoryItem struct {
	Content    string         `json:"content"`
	Timestamp  time.Time      `json:"timestamp"`
	Type       string         `json:"type"`
	Importance float64        `json:"importance"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// MemoryStats summarizes a SimpleMemory.
type MemoryStats struct {
	Total  int            `json:"total"`
	ByType map[string]int `json:"by_type"`
	Oldest time.Time      `json:"oldest,omitempty"`
	Newest time.Time      `json:"newest,omitempty"`
}

// SimpleMemory is a bounded list of items recalled by keyword overlap.
// Once full, the oldest item is evicted.
type SimpleMemory struct {
	mu       sync.RWMutex
	items    []MemoryItem
	maxItems int
	now      func() time.Time
}

func NewSimpleMemory(maxItems int) *SimpleMemory {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &SimpleMemory{maxItems: maxItems, now: time.Now}
}

// Store remembers content. An empty type becomes "general".
func (m *SimpleMemory) Store(content, typ string, importance float64, meta map[string]any) MemoryItem {
	if typ == "" {
		typ = "general"
	}
	item := MemoryItem{
		Content:    content,
		Timestamp:  m.now(),
		Type:       typ,
		Importance: importance,
		Metadata:   meta,
	}
	m.mu.Lock()
	m.items = append(m.items, item)
	if len(m.items) > m.maxItems {
		m.items = m.items[len(m.items)-m.maxItems:]
	}
	m.mu.Unlock()
	return item
}

// Retrieve returns up to limit items containing at least one query word.
// Items rank by the number of matching words, then importance; remaining
// ties favour the most recent item.
func (m *SimpleMemory) Retrieve(query string, limit int) []MemoryItem {
	if limit <= 0 {
		limit = 5
	}
	words := strings.Fields(strings.ToLower(query))

	type scored struct {
		item  MemoryItem
		score int
	}
	m.mu.RLock()
	var hits []scored
	for i := len(m.items) - 1; i >= 0; i-- {
		content := strings.ToLower(m.items[i].Content)
		score := 0
		for _, w := range words {
			if strings.Contains(content, w) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{m.items[i], score})
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].item.Importance > hits[j].item.Importance
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]MemoryItem, len(hits))
	for i, h := range hits {
		out[i] = h.item
	}
	return out
}

// Items returns all items, oldest first.
func (m *SimpleMemory) Items() []MemoryItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MemoryItem(nil), m.items...)
}

func (m *SimpleMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *SimpleMemory) Clear() {
	m.mu.Lock()
	m.items = nil
	m.mu.Unlock()
}

func (m *SimpleMemory) Stats() MemoryStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := MemoryStats{Total: len(m.items), ByType: map[string]int{}}
	for _, it := range m.items {
		st.ByType[it.Type]++
	}
	if len(m.items) > 0 {
		st.Oldest = m.items[0].Timestamp
		st.Newest = m.items[len(m.items)-1].Timestamp
	}
	return st
}
