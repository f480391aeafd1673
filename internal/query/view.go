package query

import (
	"context"
	"errors"
	"sync"

	"github.com/Skotchmaster/bookstore/internal/models"
)

var ErrStale = errors.New("query superseded by a newer key")

type Fetcher[T any] func(ctx context.Context, key Key) (*models.Page[T], error)

// View is the view state of one listing screen. Only the most recently
// selected key is ever rendered; a fetch that finishes after its key was
// replaced reports ErrStale and leaves the view untouched.
type View[T any] struct {
	cache *Cache[T]
	fetch Fetcher[T]

	mu      sync.Mutex
	seq     uint64
	current Key
	page    *models.Page[T]
	err     error
}

func NewView[T any](cache *Cache[T], fetch Fetcher[T]) *View[T] {
	return &View[T]{cache: cache, fetch: fetch}
}

func (v *View[T]) Select(ctx context.Context, key Key) (*models.Page[T], error) {
	v.mu.Lock()
	v.seq++
	seq := v.seq
	v.current = key
	v.mu.Unlock()

	page, ok := v.cache.Get(key)
	var err error
	if !ok {
		epoch := v.cache.Epoch(key.Resource)
		page, err = v.fetch(ctx, key)
		if err == nil {
			v.cache.SetAt(key, page, epoch)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.seq {
		return nil, ErrStale
	}
	v.page, v.err = page, err
	if err != nil {
		v.page = nil
		return nil, err
	}
	return page, nil
}

// Current returns what the screen should render right now.
func (v *View[T]) Current() (Key, *models.Page[T], error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current, v.page, v.err
}

// Reset forgets the rendered page, for example after logout.
func (v *View[T]) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	v.current = Key{}
	v.page = nil
	v.err = nil
}
