package api

import (
	"context"
	"sync"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

type entry struct {
	pid    *actor.PID
	cancel context.CancelFunc
}

// todo this should be persistent
type requestsCache struct {
	mu  sync.RWMutex
	ids map[uuid.UUID]entry
}

func newRequestsCache() *requestsCache {
	return &requestsCache{
		ids: map[uuid.UUID]entry{},
	}
}

func (s *requestsCache) remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

func (s *requestsCache) add(id uuid.UUID, e entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = e
}

func (s *requestsCache) get(id uuid.UUID) (entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.ids[id]
	return e, ok
}

// drain returns every entry and empties the cache.
func (s *requestsCache) drain() []entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entry, 0, len(s.ids))
	for id, e := range s.ids {
		out = append(out, e)
		delete(s.ids, id)
	}
	return out
}
