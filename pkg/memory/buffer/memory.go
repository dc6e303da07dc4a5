package buffer

import "sync"

// Memories records the prompt and raw answer of each oracle call an agent made.
type Memories struct {
	mu    sync.Mutex
	Items []Memory `json:"memories"`
}

type Memory struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func New() *Memories {
	return &Memories{Items: make([]Memory, 0)}
}

func (m *Memories) Add(m2 Memory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Items = append(m.Items, m2)
}

func (m *Memories) Snapshot() []Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Memory, len(m.Items))
	copy(out, m.Items)
	return out
}

func (m *Memories) Last() (Memory, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Items) == 0 {
		return Memory{}, false
	}
	return m.Items[len(m.Items)-1], true
}
