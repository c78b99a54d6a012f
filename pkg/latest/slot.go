// Package latest реализует доставку "только последнее значение":
// медленный получатель пропускает промежуточные значения и видит самое новое.
package latest

import "sync"

// Slot - канал емкостью 1, в котором новое значение заменяет
// непрочитанное старое. Offer никогда не блокируется.
type Slot[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
}

func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{ch: make(chan T, 1)}
}

// C возвращает канал для чтения; закрывается вызовом Close
func (s *Slot[T]) C() <-chan T {
	return s.ch
}

// Offer кладет значение, вытесняя непрочитанное. После Close значение отбрасывается.
func (s *Slot[T]) Offer(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- v
}

// Close закрывает канал; повторный вызов безопасен
func (s *Slot[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
