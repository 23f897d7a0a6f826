// internal/rtclient/cache_test.go
package rtclient

import "testing"

func TestQueryCacheSetGet(t *testing.T) {
	cache := NewQueryCache()

	if _, ok := cache.Get("service-orders"); ok {
		t.Error("empty cache should miss")
	}

	cache.Set("service-orders", []string{"o1", "o2"})
	v, ok := cache.Get("service-orders")
	if !ok {
		t.Fatal("expected hit")
	}
	if orders := v.([]string); len(orders) != 2 {
		t.Errorf("unexpected value: %v", v)
	}
}

func TestQueryCacheInvalidate(t *testing.T) {
	cache := NewQueryCache()
	cache.Set("a", 1)
	cache.Set("b", 2)

	cache.Invalidate("a", "missing")
	if _, ok := cache.Get("a"); ok {
		t.Error("a should be invalidated")
	}
	if _, ok := cache.Get("b"); !ok {
		t.Error("b should survive")
	}
}

func TestQueryCacheInvalidatePrefix(t *testing.T) {
	cache := NewQueryCache()
	cache.Set("service-orders", "list")
	cache.Set("service-orders/o1", "detail")
	cache.Set("service-orders-summary", "other") // not under the prefix
	cache.Set("inventory", "items")

	cache.InvalidatePrefix("service-orders")

	if _, ok := cache.Get("service-orders"); ok {
		t.Error("list key should be invalidated")
	}
	if _, ok := cache.Get("service-orders/o1"); ok {
		t.Error("detail key should be invalidated")
	}
	if _, ok := cache.Get("service-orders-summary"); !ok {
		t.Error("sibling key with shared prefix text should survive")
	}
	if _, ok := cache.Get("inventory"); !ok {
		t.Error("unrelated key should survive")
	}
}
