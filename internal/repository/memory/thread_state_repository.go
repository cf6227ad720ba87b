package memory

import (
	"time"

	"github.com/Voldemort0731/fiwb-mvp/pkg/store"

	"github.com/patrickmn/go-cache"
)

type ThreadStateRepository struct {
	cache *cache.Cache
}

func NewThreadStateRepository() *ThreadStateRepository {
	// Default expiration of 1 hour, purge sweep every 10 minutes
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &ThreadStateRepository{
		cache: c,
	}
}

func (r *ThreadStateRepository) Save(state *store.ThreadState) {
	r.cache.Set(state.ID, state, cache.DefaultExpiration)
}

func (r *ThreadStateRepository) Get(threadID string) (*store.ThreadState, bool) {
	if x, found := r.cache.Get(threadID); found {
		return x.(*store.ThreadState), true
	}
	return nil, false
}

func (r *ThreadStateRepository) Delete(threadID string) {
	r.cache.Delete(threadID)
}
