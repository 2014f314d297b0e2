package imagesource

import (
	"sync"

	"github.com/google/uuid"
)

const urlPrefix = "blob:gritshot/"

// Registry issues and revokes display URLs. A URL stays live until revoked;
// anything still live when the session ends has leaked.
type Registry struct {
	mu       sync.Mutex
	live     map[string]struct{}
	observer func(op, url string)
}

func NewRegistry() *Registry {
	return &Registry{live: make(map[string]struct{})}
}

// Observe installs fn to be called with "create" or "revoke" for every URL.
func (r *Registry) Observe(fn func(op, url string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = fn
}

func (r *Registry) Create() string {
	url := urlPrefix + uuid.NewString()
	r.mu.Lock()
	r.live[url] = struct{}{}
	fn := r.observer
	r.mu.Unlock()
	if fn != nil {
		fn("create", url)
	}
	return url
}

// Revoke releases url. Revoking an unknown or already revoked URL is a no-op.
func (r *Registry) Revoke(url string) {
	r.mu.Lock()
	_, ok := r.live[url]
	delete(r.live, url)
	fn := r.observer
	r.mu.Unlock()
	if ok && fn != nil {
		fn("revoke", url)
	}
}

func (r *Registry) IsLive(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.live[url]
	return ok
}

// Live returns the number of URLs not yet revoked.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}
