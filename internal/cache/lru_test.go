package cache

import (
	"fmt"
	"reflect"
	"testing"
)

func TestTierCacheBasicOperations(t *testing.T) {
	c := NewTierCache[string](3)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set("a", "1")
	c.Set("b", "2")

	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v; want %q, true", v, ok, "1")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d; want 2", c.Len())
	}

	c.Set("a", "updated")
	if v, _ := c.Get("a"); v != "updated" {
		t.Errorf("Get(a) after update = %q; want %q", v, "updated")
	}
	if c.Len() != 2 {
		t.Errorf("Len() after update = %d; want 2", c.Len())
	}
}

func TestTierCacheEviction(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		ops      func(c *TierCache[int])
		want     []string // expected surviving keys
		gone     []string
	}{
		{
			name:     "oldest evicted at capacity",
			capacity: 2,
			ops: func(c *TierCache[int]) {
				c.Set("a", 1)
				c.Set("b", 2)
				c.Set("c", 3)
			},
			want: []string{"b", "c"},
			gone: []string{"a"},
		},
		{
			name:     "get refreshes recency",
			capacity: 2,
			ops: func(c *TierCache[int]) {
				c.Set("a", 1)
				c.Set("b", 2)
				c.Get("a")
				c.Set("c", 3)
			},
			want: []string{"a", "c"},
			gone: []string{"b"},
		},
		{
			name:     "set refreshes recency",
			capacity: 2,
			ops: func(c *TierCache[int]) {
				c.Set("a", 1)
				c.Set("b", 2)
				c.Set("a", 10)
				c.Set("c", 3)
			},
			want: []string{"a", "c"},
			gone: []string{"b"},
		},
		{
			name:     "contains does not refresh recency",
			capacity: 2,
			ops: func(c *TierCache[int]) {
				c.Set("a", 1)
				c.Set("b", 2)
				c.Contains("a")
				c.Set("c", 3)
			},
			want: []string{"b", "c"},
			gone: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewTierCache[int](tt.capacity)
			tt.ops(c)

			for _, key := range tt.want {
				if !c.Contains(key) {
					t.Errorf("key %q evicted; want present", key)
				}
			}
			for _, key := range tt.gone {
				if c.Contains(key) {
					t.Errorf("key %q present; want evicted", key)
				}
			}
		})
	}
}

func TestTierCacheOnEvict(t *testing.T) {
	var evicted []string
	c := NewTierCache[int](2)
	c.OnEvict(func(key string) { evicted = append(evicted, key) })

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3) // evicts a

	if !reflect.DeepEqual(evicted, []string{"a"}) {
		t.Errorf("evicted = %v; want [a]", evicted)
	}

	// Explicit removal and clear must not fire the callback.
	c.Remove("b")
	c.Clear()
	if len(evicted) != 1 {
		t.Errorf("evicted after Remove/Clear = %v; want only [a]", evicted)
	}
}

func TestTierCacheRemove(t *testing.T) {
	c := NewTierCache[int](4)
	c.Set("a", 1)

	if !c.Remove("a") {
		t.Error("Remove(a) = false; want true")
	}
	if c.Remove("a") {
		t.Error("Remove(a) second call = true; want false")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d; want 0", c.Len())
	}
}

func TestTierCacheKeysOrder(t *testing.T) {
	c := NewTierCache[int](4)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Get("a") // a becomes MRU

	got := c.Keys()
	want := []string{"a", "c", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v; want %v", got, want)
	}
}

func TestTierCacheClear(t *testing.T) {
	c := NewTierCache[int](4)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d; want 0", c.Len())
	}
	if c.Contains("a") {
		t.Error("Contains(a) after Clear = true; want false")
	}

	// Cache stays usable after Clear.
	c.Set("x", 9)
	if v, ok := c.Get("x"); !ok || v != 9 {
		t.Errorf("Get(x) after Clear = %d, %v; want 9, true", v, ok)
	}
}

func TestTierCacheCapacityClamped(t *testing.T) {
	c := NewTierCache[int](0)
	if c.Capacity() != 1 {
		t.Errorf("Capacity() = %d; want 1", c.Capacity())
	}

	c.Set("a", 1)
	c.Set("b", 2)
	if c.Len() != 1 {
		t.Errorf("Len() = %d; want 1", c.Len())
	}
}

func TestTierCacheConcurrentAccess(t *testing.T) {
	c := NewTierCache[int](64)

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("key-%d", i%100)
				c.Set(key, i)
				c.Get(key)
				c.Contains(key)
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}

	if c.Len() > c.Capacity() {
		t.Errorf("Len() = %d exceeds capacity %d", c.Len(), c.Capacity())
	}
}
