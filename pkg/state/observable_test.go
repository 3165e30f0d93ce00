package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObservable_NotifiesInOrder(t *testing.T) {
	o := NewObservable(0)

	var seen []int
	unsubscribe := o.Subscribe(func(v int) { seen = append(seen, v) })

	o.Update(func(v *int) { *v = 1 })
	o.Update(func(v *int) { *v = 2 })
	unsubscribe()
	unsubscribe()
	o.Update(func(v *int) { *v = 3 })

	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, 3, o.Get())
}

func TestObservable_TryUpdateSkipsNotification(t *testing.T) {
	o := NewObservable("a")
	calls := 0
	o.Subscribe(func(string) { calls++ })

	assert.False(t, o.TryUpdate(func(*string) bool { return false }))
	assert.True(t, o.TryUpdate(func(s *string) bool { *s = "b"; return true }))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "b", o.Get())
}

func TestObservable_ReentrantUpdate(t *testing.T) {
	o := NewObservable(0)

	var seen []int
	o.Subscribe(func(v int) {
		seen = append(seen, v)
		if v == 1 {
			o.Update(func(v *int) { *v = 2 })
		}
	})

	o.Update(func(v *int) { *v = 1 })

	assert.Equal(t, []int{1, 2}, seen)
}

func TestObservable_ConcurrentUpdatesAreSerialized(t *testing.T) {
	o := NewObservable(0)

	var mu sync.Mutex
	inside := 0
	maxInside := 0
	count := 0
	o.Subscribe(func(int) {
		mu.Lock()
		inside++
		if inside > maxInside {
			maxInside = inside
		}
		count++
		mu.Unlock()

		mu.Lock()
		inside--
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Update(func(v *int) { *v++ })
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, o.Get())
	assert.Equal(t, 50, count)
	assert.Equal(t, 1, maxInside)
}

func TestObservable_Close(t *testing.T) {
	o := NewObservable(0)
	calls := 0
	o.Subscribe(func(int) { calls++ })

	o.Close()
	o.Update(func(v *int) { *v = 7 })
	o.Subscribe(func(int) { calls++ })()

	assert.Equal(t, 0, calls)
	assert.Equal(t, 7, o.Get())
}

func TestCopyingObservable_ReadersGetCopies(t *testing.T) {
	o := NewCopyingObservable([]int{1, 2}, func(v []int) []int {
		return append([]int(nil), v...)
	})

	var seen []int
	o.Subscribe(func(v []int) { seen = v })
	o.Update(func(v *[]int) { *v = append(*v, 3) })

	got := o.Get()
	got[0] = 100
	seen[1] = 200

	assert.Equal(t, []int{1, 2, 3}, o.Get())
}
