// Package notify provides a small synchronous fan-out used for change streams
// (focus, key events, visibility).
package notify

import "sync"

// Feed delivers values to subscribers in subscription order. Emit calls
// subscribers outside the internal lock, so a subscriber may subscribe,
// cancel, or emit again from inside its callback.
type Feed[T any] struct {
	mu    sync.Mutex
	next  int
	order []int
	subs  map[int]func(T)
}

// Subscribe registers fn and returns a cancel function. Cancel is idempotent.
func (f *Feed[T]) Subscribe(fn func(T)) (cancel func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subs == nil {
		f.subs = make(map[int]func(T))
	}
	id := f.next
	f.next++
	f.subs[id] = fn
	f.order = append(f.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { f.remove(id) })
	}
}

// Emit delivers v to every current subscriber.
func (f *Feed[T]) Emit(v T) {
	f.mu.Lock()
	fns := make([]func(T), 0, len(f.order))
	for _, id := range f.order {
		fns = append(fns, f.subs[id])
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of active subscribers.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

func (f *Feed[T]) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.subs, id)
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			return
		}
	}
}
