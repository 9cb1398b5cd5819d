package entity

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryRegistry_Predefined(t *testing.T) {
	r := NewCategoryRegistry([]string{"ios", "hardware", "ios", "", "autres"}, 4)

	assert.Equal(t, []string{"ios", "hardware", "autres"}, r.Names())
	assert.True(t, r.Known("ios"))
	assert.True(t, r.IsPredefined("autres"))
	assert.False(t, r.Known("gaming"))
	assert.Empty(t, r.Discovered())
}

func TestCategoryRegistry_ObserveCapsOverlay(t *testing.T) {
	r := NewCategoryRegistry([]string{"ios"}, 2)

	rejected := r.Observe("ios", "legacy", "legacy", "old", "extra")

	assert.Equal(t, []string{"extra"}, rejected)
	assert.Equal(t, []string{"legacy", "old"}, r.Discovered())
	assert.Equal(t, []string{"ios", "legacy", "old"}, r.Names())
	assert.True(t, r.Known("old"))
	assert.False(t, r.IsPredefined("old"))
	assert.False(t, r.Known("extra"))
}

func TestCategoryRegistry_ZeroCapDisablesOverlay(t *testing.T) {
	r := NewCategoryRegistry([]string{"ios"}, 0)

	assert.Equal(t, []string{"legacy"}, r.Observe("legacy"))
	assert.Empty(t, r.Discovered())

	neg := NewCategoryRegistry(nil, -3)
	assert.Equal(t, []string{"x"}, neg.Observe("x"))
}

func TestCategoryRegistry_PruneAndReset(t *testing.T) {
	r := NewCategoryRegistry([]string{"ios"}, 8)
	r.Observe("a", "b", "c")

	removed := r.Prune(map[string]struct{}{"b": {}, "ios": {}})

	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"b"}, r.Discovered())
	assert.True(t, r.Known("ios"), "predefined names survive pruning")

	r.Reset()
	assert.Empty(t, r.Discovered())
	assert.Equal(t, []string{"ios"}, r.Names())
}

func TestCategoryRegistry_ConcurrentObserve(t *testing.T) {
	r := NewCategoryRegistry(nil, 10)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Observe(fmt.Sprintf("c%d", i%20))
			_ = r.Names()
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.Discovered(), 10)
}
