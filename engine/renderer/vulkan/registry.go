package vulkan

import "sync"

// registry maps the integer handles handed out through the gpu package to the
// native objects they stand for. Handle 0 is never issued.
type registry[T any] struct {
	mu   sync.Mutex
	next uint64
	objs map[uint64]T
}

func (r *registry[T]) add(obj T) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.objs == nil {
		r.objs = make(map[uint64]T)
	}
	r.next++
	r.objs[r.next] = obj
	return r.next
}

func (r *registry[T]) get(handle uint64) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.objs[handle]
	return obj, ok
}

// remove unregisters handle and returns the object it stood for.
func (r *registry[T]) remove(handle uint64) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.objs[handle]
	if ok {
		delete(r.objs, handle)
	}
	return obj, ok
}

func (r *registry[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objs)
}

// removeIf unregisters every object for which fn reports true.
func (r *registry[T]) removeIf(fn func(T) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h, obj := range r.objs {
		if fn(obj) {
			delete(r.objs, h)
		}
	}
}

// drain removes and returns every live object.
func (r *registry[T]) drain() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, 0, len(r.objs))
	for h, obj := range r.objs {
		out = append(out, obj)
		delete(r.objs, h)
	}
	return out
}
