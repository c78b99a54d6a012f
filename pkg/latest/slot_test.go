package latest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlot_KeepsOnlyLatest(t *testing.T) {
	s := NewSlot[int]()
	s.Offer(1)
	s.Offer(2)
	s.Offer(3)

	assert.Equal(t, 3, <-s.C())
	select {
	case v := <-s.C():
		t.Fatalf("unexpected value %d", v)
	default:
	}
}

func TestSlot_OfferAfterClose(t *testing.T) {
	s := NewSlot[string]()
	s.Offer("a")
	s.Close()
	s.Close()
	s.Offer("b")

	v, ok := <-s.C()
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	_, ok = <-s.C()
	assert.False(t, ok)
}

func TestSlot_ConcurrentOffersNeverBlock(t *testing.T) {
	s := NewSlot[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			s.Offer(v)
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.C(), 1)
}
