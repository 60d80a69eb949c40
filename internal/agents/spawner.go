// Agent spawning: ID issue and batch population creation.
package agents

import "sync"

// Spawner issues agent IDs and builds populations.
type Spawner struct {
	mu     sync.Mutex
	nextID AgentID
}

// NewSpawner creates a spawner issuing IDs from 1.
func NewSpawner() *Spawner {
	return &Spawner{nextID: 1}
}

// SetNextID sets the next agent ID to be issued.
func (s *Spawner) SetNextID(id AgentID) {
	s.mu.Lock()
	s.nextID = id
	s.mu.Unlock()
}

// NextID issues a fresh ID.
func (s *Spawner) NextID() AgentID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id
}

// SpawnPopulation creates count agents with build, passing each its index.
func SpawnPopulation(count int, build func(i int) *Agent) []*Agent {
	if count < 0 {
		count = 0
	}
	out := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, build(i))
	}
	return out
}
