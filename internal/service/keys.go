package service

import (
	"sync"

	"github.com/google/uuid"
)

// KeyAssigner hands out surrogate identifiers.
type KeyAssigner interface {
	NewID() string
}

// UUIDAssigner issues random 128-bit UUIDs (v4).
type UUIDAssigner struct{}

// NewID implements KeyAssigner.
func (UUIDAssigner) NewID() string {
	return uuid.NewString()
}

// KeyRegistry maps natural keys to surrogate ids so a rebuild can keep the
// ids issued by earlier runs. Unknown keys get a fresh id from the assigner.
type KeyRegistry struct {
	mu       sync.Mutex
	assigner KeyAssigner
	ids      map[string]string
	used     map[string]struct{}
}

// NewKeyRegistry builds an empty registry. A nil assigner uses UUIDs.
func NewKeyRegistry(assigner KeyAssigner) *KeyRegistry {
	if assigner == nil {
		assigner = UUIDAssigner{}
	}
	return &KeyRegistry{
		assigner: assigner,
		ids:      make(map[string]string),
		used:     make(map[string]struct{}),
	}
}

// Seed records an existing mapping. The first mapping for a key wins and an
// id already bound to another key is ignored, so ids stay unique.
func (r *KeyRegistry) Seed(key, id string) {
	if key == "" || id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[key]; ok {
		return
	}
	if _, ok := r.used[id]; ok {
		return
	}
	r.ids[key] = id
	r.used[id] = struct{}{}
}

// Reuse returns the id bound to key, assigning a new one when absent.
func (r *KeyRegistry) Reuse(key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[key]; ok {
		return id
	}
	id := r.assigner.NewID()
	for {
		if _, clash := r.used[id]; !clash {
			break
		}
		id = r.assigner.NewID()
	}
	r.ids[key] = id
	r.used[id] = struct{}{}
	return id
}

// Len returns the number of bound keys.
func (r *KeyRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}
