// Package lifecycle provides scoped cleanup primitives.
package lifecycle

import "sync"

// Disposable releases a resource.
type Disposable interface {
	Dispose()
}

// DisposeFunc adapts a plain function to Disposable. It runs on every call.
type DisposeFunc func()

// Dispose calls f.
func (f DisposeFunc) Dispose() { f() }

type onceDisposable struct {
	once sync.Once
	fn   func()
}

func (d *onceDisposable) Dispose() {
	d.once.Do(d.fn)
}

// ToDisposable wraps fn so that it runs exactly once, on the first Dispose.
func ToDisposable(fn func()) Disposable {
	if fn == nil {
		fn = func() {}
	}
	return &onceDisposable{fn: fn}
}

// Combine returns a Disposable that disposes every item in reverse order.
func Combine(items ...Disposable) Disposable {
	return ToDisposable(func() {
		for i := len(items) - 1; i >= 0; i-- {
			if items[i] != nil {
				items[i].Dispose()
			}
		}
	})
}

// Store collects disposables and releases them together.
type Store struct {
	mu       sync.Mutex
	items    []Disposable
	disposed bool
}

// Add registers d with the store. If the store is already disposed, d is
// disposed immediately.
func (s *Store) Add(d Disposable) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		d.Dispose()
		return
	}
	s.items = append(s.items, d)
	s.mu.Unlock()
}

// Len returns the number of pending disposables.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Dispose releases all collected items in reverse order of addition.
func (s *Store) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	items := s.items
	s.items = nil
	s.mu.Unlock()

	for i := len(items) - 1; i >= 0; i-- {
		items[i].Dispose()
	}
}
