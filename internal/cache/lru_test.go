package cache

import "testing"

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRU[int](2)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a missing")
	}
	c.Set("c", 3) // b is now the oldest
	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a lost: %v %v", v, ok)
	}
}

func TestLRUPurge(t *testing.T) {
	c := NewLRU[string](4)
	c.Set("k", "v")
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("len=%d after purge", c.Len())
	}
	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry survived purge")
	}
}
