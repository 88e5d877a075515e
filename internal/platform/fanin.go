package platform

import "sync"

// Item is a value received by [FanIn] from one of its sources.
type Item[K comparable, V any] struct {
	Key   K
	Value V
	// Closed is set when the source channel was closed.
	// It is the last item for the key.
	Closed bool
}

// FanIn merges a dynamic set of channels into one.
// Each source gets a goroutine which forwards its values tagged with the source key,
// so the receiver waits on a single channel whatever the number of sources.
type FanIn[K comparable, V any] struct {
	out  chan Item[K, V]
	done chan struct{}
	wg   sync.WaitGroup
}

// NewFanIn creates a new FanIn.
func NewFanIn[K comparable, V any]() *FanIn[K, V] {
	return &FanIn[K, V]{
		out:  make(chan Item[K, V]),
		done: make(chan struct{}),
	}
}

// Add starts forwarding values from src until it is closed or FanIn is closed.
func (f *FanIn[K, V]) Add(key K, src <-chan V) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		for {
			select {
			case <-f.done:
				return
			case v, ok := <-src:
				item := Item[K, V]{Key: key, Value: v, Closed: !ok}
				select {
				case f.out <- item:
				case <-f.done:
					return
				}

				if !ok {
					return
				}
			}
		}
	}()
}

// C returns the merged channel.
func (f *FanIn[K, V]) C() <-chan Item[K, V] {
	return f.out
}

// Close stops all forwarding goroutines and waits for them to exit.
// Values not yet received are dropped.
func (f *FanIn[K, V]) Close() {
	close(f.done)
	f.wg.Wait()
}
